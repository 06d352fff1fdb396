package http

import (
	"net/http"
	"strings"

	"github.com/payprop/oauth2-server/internal/oauth/registry"
	"github.com/payprop/oauth2-server/internal/oauth/service"
	"github.com/payprop/oauth2-server/pkg/httpx"
	"github.com/payprop/oauth2-server/pkg/oauthsdk"
	"github.com/payprop/oauth2-server/pkg/slogx"
)

// IntrospectHandler serves POST /oauth/introspect following RFC7662. The
// caller authenticates as a registered client; the response reports whether
// the presented token is live and, when it is, its metadata.
type IntrospectHandler struct {
	Registry    *registry.Registry
	GateService *service.GateService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection Endpoint
//	@Description	Introspects a token and returns metadata about it (RFC 7662)
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string								true	"The token to introspect"
//	@Param			token_type_hint	formData	string								false	"Hint about token type (currently only 'access_token' is supported)"	Enums(access_token)
//	@Param			client_id		formData	string								true	"Client identifier"
//	@Param			client_secret	formData	string								false	"Client secret (required for confidential clients)"
//	@Success		200				{object}	oauthsdk.IntrospectionResponse	"Token introspection result"
//	@Failure		400				{object}	oauthsdk.ErrorResponse			"error, error_description"
//	@Failure		401				{object}	oauthsdk.ErrorResponse			"error, error_description"
//	@Header			200				{string}	Cache-Control					"no-store"
//	@Header			200				{string}	Pragma							"no-cache"
//	@Router			/oauth/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	tokenTypeHint := r.Form.Get("token_type_hint")
	clientID := strings.TrimSpace(r.Form.Get("client_id"))
	clientSecret := r.Form.Get("client_secret")

	if token == "" || clientID == "" {
		oauthsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// 3. Only registered clients may probe token state
	if _, err := h.Registry.Authenticate(ctx, clientID, clientSecret); err != nil {
		log.Info("introspection refused", "client_id", clientID)
		oauthsdk.ErrInvalidClient.WriteError(w)
		return
	}

	// 4. Only access tokens are introspectable. If the hint names another
	// type, return inactive without revealing why.
	if tokenTypeHint != "" && tokenTypeHint != "access_token" {
		writeInactiveResponse(w)
		return
	}

	record, active := h.GateService.Introspect(ctx, token)
	if !active {
		writeInactiveResponse(w)
		return
	}

	response := oauthsdk.IntrospectionResponse{
		Active:    true,
		Scope:     strings.Join(record.Scopes, " "),
		ClientID:  record.ClientID,
		TokenType: "Bearer",
		Exp:       record.ExpiresAt.Unix(),
		Iat:       record.CreatedAt.Unix(),
		Sub:       record.UserID,
		Jti:       record.ID,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}

// writeInactiveResponse returns the minimal RFC7662 response for inactive tokens.
func writeInactiveResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)

	// Per RFC7662: "If the token is not active, does not exist on this server,
	// or the protected resource is not allowed to introspect this particular token,
	// then the authorization server MUST return an introspection response with
	// the 'active' field set to 'false'"
	_, _ = w.Write([]byte(`{"active":false}`))
}
