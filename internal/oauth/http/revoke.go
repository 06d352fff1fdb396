package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/payprop/oauth2-server/internal/oauth/service"
	"github.com/payprop/oauth2-server/pkg/httpx"
	"github.com/payprop/oauth2-server/pkg/oauthsdk"
	"github.com/payprop/oauth2-server/pkg/slogx"
)

// RevokeHandler serves POST /oauth/revoke following the RFC 7009 spec.
// Revoking an access token also revokes its paired refresh token; revoking a
// refresh token leaves the access token to ride out its own expiry.
// All tokens even if invalid/unknown return 200 OK to prevent token scanning
// attacks.
type RevokeHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes a previously issued token (RFC 7009)
//	@Description	The caller must authenticate as the client the token was issued to.
//	@Description	The endpoint is idempotent and returns 200 OK even for invalid/unknown tokens to prevent token scanning attacks.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Param			client_id		formData	string	true	"Client identifier"
//	@Param			client_secret	formData	string	false	"Client secret (required for confidential clients)"
//	@Success		200				"Token revoked successfully (or was already invalid)"
//	@Failure		400				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/oauth/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Ensure the right content-type
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		oauthsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	token := r.Form.Get("token")
	clientID := strings.TrimSpace(r.Form.Get("client_id"))
	clientSecret := r.Form.Get("client_secret")

	if token == "" || clientID == "" {
		oauthsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// 3. Revoke. Client authentication failures surface as 401; a token
	// that is unknown or belongs to another client does not, per RFC 7009.
	if err := h.TokenService.RevokeToken(ctx, clientID, clientSecret, token); err != nil {
		if errors.Is(err, service.ErrInvalidClient) {
			oauthsdk.ErrInvalidClient.WriteError(w)
			return
		}
		log.Warn("revocation failed", "err", err)
	}

	// 4. Return 200 OK with empty body per spec
	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}
