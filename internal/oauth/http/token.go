package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/service"
	"github.com/payprop/oauth2-server/pkg/httpx"
	"github.com/payprop/oauth2-server/pkg/oauthsdk"
	"github.com/payprop/oauth2-server/pkg/slogx"
)

// TokenHandler serves the access token endpoint.
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues access and refresh tokens using OAuth2 grant types (authorization_code, refresh_token, client_credentials, password).
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(authorization_code, refresh_token, client_credentials, password)
//	@Param			code			formData	string					false	"Authorization code (required for authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI (required for authorization_code grant)"
//	@Param			refresh_token	formData	string					false	"Refresh token (required for refresh_token grant, may also arrive as a bearer Authorization header)"
//	@Param			username		formData	string					false	"Resource owner username (required for password grant)"
//	@Param			password		formData	string					false	"Resource owner password (required for password grant)"
//	@Param			client_id		formData	string					true	"Client identifier (required for all grants)"
//	@Param			client_secret	formData	string					false	"Client secret (required for confidential clients)"
//	@Param			scope			formData	string					false	"Space-delimited list of scopes"
//	@Success		200				{object}	oauthsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, scope"
//	@Failure		400				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/oauth/access_token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	// 3. Handle the grant type. Anything unrecognised, including a missing
	// grant_type, is an invalid_request.
	switch r.Form.Get("grant_type") {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, r.Form)
	case "refresh_token":
		h.handleRefreshGrant(w, r, r.Form)
	case "client_credentials":
		h.handleClientCredentialsGrant(w, r, r.Form)
	case "password":
		h.handlePasswordGrant(w, r, r.Form)
	default:
		oauthsdk.ErrInvalidRequest.WithDescription("unknown grant_type").WriteError(w)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	clientID := strings.TrimSpace(form.Get("client_id"))
	clientSecret := form.Get("client_secret")

	if code == "" || redirectURI == "" || clientID == "" {
		oauthsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeAuthorizationCode(ctx, clientID, clientSecret, code, redirectURI)
	if err != nil {
		writeGrantError(w, log, "authorization_code", err)
		return
	}

	writeTokenResponse(w, pair)
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// The refresh token arrives in the form body, or as the bearer
	// credential of the Authorization header.
	refresh := form.Get("refresh_token")
	if refresh == "" {
		refresh = httpx.ExtractBearerToken(r)
	}
	clientID := strings.TrimSpace(form.Get("client_id"))
	clientSecret := form.Get("client_secret")
	requested := httpx.ParseSpaceDelimitedFields(form.Get("scope"))

	if refresh == "" || clientID == "" {
		oauthsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(ctx, clientID, clientSecret, refresh, requested)
	if err != nil {
		writeGrantError(w, log, "refresh_token", err)
		return
	}

	writeTokenResponse(w, pair)
}

func (h *TokenHandler) handleClientCredentialsGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID := strings.TrimSpace(form.Get("client_id"))
	clientSecret := form.Get("client_secret")
	requested := httpx.ParseSpaceDelimitedFields(form.Get("scope"))

	// Both client_id and client_secret are required for client_credentials grant
	if clientID == "" || clientSecret == "" {
		oauthsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeClientCredentials(ctx, clientID, clientSecret, requested)
	if err != nil {
		writeGrantError(w, log, "client_credentials", err)
		return
	}

	writeTokenResponse(w, pair)
}

func (h *TokenHandler) handlePasswordGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID := strings.TrimSpace(form.Get("client_id"))
	clientSecret := form.Get("client_secret")
	username := strings.TrimSpace(form.Get("username"))
	password := form.Get("password")
	requested := httpx.ParseSpaceDelimitedFields(form.Get("scope"))

	if clientID == "" || username == "" || password == "" {
		oauthsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangePassword(ctx, clientID, clientSecret, username, password, requested)
	if err != nil {
		writeGrantError(w, log, "password", err)
		return
	}

	writeTokenResponse(w, pair)
}

func writeGrantError(w http.ResponseWriter, log *slog.Logger, grantType string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		oauthsdk.ErrUnauthorizedClient.WithDescription("client authentication failed").WriteError(w)
	case errors.Is(err, service.ErrInvalidGrant):
		oauthsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		oauthsdk.ErrInvalidScope.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		oauthsdk.ErrInvalidRequest.WriteError(w)
	default:
		log.Error("token grant failed", "grant_type", grantType, "err", err)
		oauthsdk.ErrServerError.WriteError(w)
	}
}

// writeTokenResponse renders a minted pair. refresh_token is omitted when
// the grant never issues one, per the RFC.
func writeTokenResponse(w http.ResponseWriter, pair *domain.TokenPair) {
	response := oauthsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		Scope:        strings.TrimSpace(pair.Scope),
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
