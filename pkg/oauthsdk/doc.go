/*
Package oauthsdk provides a client SDK and the shared OAuth2 wire types
(token responses, introspection responses, RFC 6749 error values) for the
authorization server.

The server's HTTP handlers use OAuth2Error and the response structs directly,
so anything the SDK decodes is the same type the server encoded.

Create an SDKClient to drive the token endpoint grants:

	client := oauthsdk.NewSDKClient("https://auth.example.com")

	// Build the front-channel URL for the authorization_code flow
	u := client.AuthorizeURL("client-id", "https://app/cb", "xyz", []string{"act"})

	// Back-channel exchange once the code comes back
	tokens, err := client.AuthorizationCodeGrant(ctx, "client-id", "secret", code, "https://app/cb")

	// Rotate tokens
	tokens, err = client.RefreshGrant(ctx, "client-id", "secret", tokens.RefreshToken)

	// Machine-to-machine
	tokens, err = client.ClientCredentialsGrant(ctx, "client-id", "secret", []string{"act"})

Errors from the server are returned as *OAuth2Error, carrying the RFC 6749
error code and the HTTP status:

	if oerr, ok := err.(*oauthsdk.OAuth2Error); ok {
		fmt.Println(oerr.Code, oerr.Description)
	}
*/
package oauthsdk
