package oauth2_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/payprop/oauth2-server/internal/oauth/app"
	"github.com/payprop/oauth2-server/pkg/oauthsdk"
)

func TestSDKAuthorizationCodeFlow(t *testing.T) {
	baseURL, _ := setupServer(t, app.Config{})
	ctx := context.Background()
	sdk := oauthsdk.NewSDKClient(baseURL)

	code := authorize(t, sdk.AuthorizeURL(clientID, redirectURI, "sdk-state", []string{"act"}))

	pair, err := sdk.AuthorizationCodeGrant(ctx, clientID, clientSecret, code, redirectURI)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, 3600, pair.ExpiresIn)

	t.Run("refresh through the SDK", func(t *testing.T) {
		next, err := sdk.RefreshGrant(ctx, clientID, clientSecret, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.AccessToken, next.AccessToken)
		pair = next
	})

	t.Run("introspect reports the token live", func(t *testing.T) {
		out, err := sdk.Introspect(ctx, clientID, clientSecret, pair.AccessToken)
		require.NoError(t, err)
		require.True(t, out.Active)
		require.Equal(t, clientID, out.ClientID)
		require.Equal(t, "act", out.Scope)
	})

	t.Run("revoke then introspect reports it dead", func(t *testing.T) {
		require.NoError(t, sdk.RevokeToken(ctx, clientID, clientSecret, pair.AccessToken))

		out, err := sdk.Introspect(ctx, clientID, clientSecret, pair.AccessToken)
		require.NoError(t, err)
		require.False(t, out.Active)
	})
}

func TestSDKErrorMapping(t *testing.T) {
	baseURL, _ := setupServer(t, app.Config{})
	ctx := context.Background()
	sdk := oauthsdk.NewSDKClient(baseURL)

	t.Run("bad secret surfaces unauthorized_client", func(t *testing.T) {
		_, err := sdk.ClientCredentialsGrant(ctx, clientID, "wrong", []string{"act"})
		require.Error(t, err)

		var oauthErr *oauthsdk.OAuth2Error
		require.True(t, errors.As(err, &oauthErr))
		require.Equal(t, oauthsdk.ErrorCodeUnauthorizedClient, oauthErr.Code)
	})

	t.Run("bogus code surfaces invalid_grant", func(t *testing.T) {
		_, err := sdk.AuthorizationCodeGrant(ctx, clientID, clientSecret, "bogus", redirectURI)
		require.Error(t, err)

		var oauthErr *oauthsdk.OAuth2Error
		require.True(t, errors.As(err, &oauthErr))
		require.Equal(t, oauthsdk.ErrorCodeInvalidGrant, oauthErr.Code)
	})

	t.Run("scope outside the grantable set", func(t *testing.T) {
		_, err := sdk.ClientCredentialsGrant(ctx, clientID, clientSecret, []string{"sleep"})
		require.Error(t, err)

		var oauthErr *oauthsdk.OAuth2Error
		require.True(t, errors.As(err, &oauthErr))
		require.Equal(t, oauthsdk.ErrorCodeInvalidScope, oauthErr.Code)
	})
}

func TestSDKHealth(t *testing.T) {
	baseURL, _ := setupServer(t, app.Config{})
	client := oauthsdk.NewSDKClient(baseURL)

	live, err := client.GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.NotEmpty(t, live.Version)

	ready, err := client.GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
}
