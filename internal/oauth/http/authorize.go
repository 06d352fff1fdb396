package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/payprop/oauth2-server/internal/oauth/registry"
	"github.com/payprop/oauth2-server/internal/oauth/service"
	"github.com/payprop/oauth2-server/pkg/httpx"
	"github.com/payprop/oauth2-server/pkg/oauthsdk"
	"github.com/payprop/oauth2-server/pkg/slogx"
)

// AuthorizeHandler processes OAuth2 authorization requests: the code flow
// (response_type=code) and the implicit flow (response_type=token).
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Logger           *slog.Logger
}

// HandleGet processes GET requests to the authorization endpoint.
// This is used when the user's browser is redirected to begin the authorization flow.
//
//	@Summary		OAuth2 authorization endpoint (GET)
//	@Description	Initiates the OAuth2 authorization flow via GET request. Used for browser redirects.
//	@Description	The configured resource-owner gateway decides whether the user approves; the
//	@Description	default gateway auto-approves on behalf of a fixed user.
//	@Description
//	@Description	**Response:**
//	@Description	- code flow: 302 redirect to redirect_uri with code and state query parameters
//	@Description	- implicit flow: 302 redirect to redirect_uri with the token in the URI fragment
//	@Description	- Error before the client is trusted: JSON error response
//	@Description	- Error after: 302 redirect carrying error and state
//	@Tags			OAuth2
//	@Produce		json
//	@Param			response_type	query		string	true	"'code' or 'token'"	default(code)
//	@Param			client_id		query		string	true	"OAuth2 client identifier"
//	@Param			redirect_uri	query		string	true	"Callback URI"
//	@Param			scope			query		string	false	"Space-delimited list of scopes"	example("act post_images")
//	@Param			state			query		string	false	"Opaque value for CSRF protection (recommended)"
//	@Success		302				{string}	string	"Redirect to redirect_uri"
//	@Failure		400				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Router			/oauth/authorize [get]
func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.process(w, r, r.URL.Query())
}

// HandlePost processes POST requests to the authorization endpoint. Identical
// to GET except parameters arrive in the form body, which lets a login form
// operated by the resource-owner gateway post back to the same route.
//
//	@Summary		OAuth2 authorization endpoint (POST)
//	@Description	Same as the GET variant with parameters in the form body.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			response_type	formData	string	true	"'code' or 'token'"	default(code)
//	@Param			client_id		formData	string	true	"OAuth2 client identifier"
//	@Param			redirect_uri	formData	string	true	"Callback URI"
//	@Param			scope			formData	string	false	"Space-delimited list of scopes"
//	@Param			state			formData	string	false	"Opaque value for CSRF protection"
//	@Success		302				{string}	string	"Redirect to redirect_uri"
//	@Failure		400				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Router			/oauth/authorize [post]
func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthsdk.ErrInvalidFormBody.WriteError(w)
		return
	}
	h.process(w, r, r.Form)
}

func (h *AuthorizeHandler) process(w http.ResponseWriter, r *http.Request, params url.Values) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	req := service.AuthorizeRequest{
		ResponseType: strings.TrimSpace(params.Get("response_type")),
		ClientID:     strings.TrimSpace(params.Get("client_id")),
		RedirectURI:  strings.TrimSpace(params.Get("redirect_uri")),
		Scope:        httpx.ParseSpaceDelimitedFields(params.Get("scope")),
		State:        params.Get("state"),
	}

	grant, err := h.AuthorizeService.Authorize(ctx, w, r, req)
	if err != nil {
		h.writeAuthorizeError(w, log, req, err)
		return
	}
	if grant == nil {
		// The owner gateway wrote its own response (e.g. a login redirect).
		return
	}

	if grant.Code != "" {
		query := url.Values{"code": {grant.Code}}
		if grant.State != "" {
			query.Set("state", grant.State)
		}
		redirect(w, r, grant.RedirectURI, query, false)
		return
	}

	// Implicit flow: the token travels in the URI fragment so it never
	// reaches the redirect target's server logs.
	fragment := url.Values{
		"access_token": {grant.AccessToken},
		"token_type":   {grant.TokenType},
		"expires_in":   {strconv.Itoa(int(grant.ExpiresIn.Seconds()))},
	}
	if grant.State != "" {
		fragment.Set("state", grant.State)
	}
	redirect(w, r, grant.RedirectURI, fragment, true)
}

// writeAuthorizeError maps a service error onto the wire. Failures raised
// before the client checked out must not redirect anywhere; failures after
// are carried back to the client on the redirect with state echoed.
func (h *AuthorizeHandler) writeAuthorizeError(
	w http.ResponseWriter,
	log *slog.Logger,
	req service.AuthorizeRequest,
	err error,
) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		oauthsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, registry.ErrUnauthorizedClient):
		h.redirectError(w, req, oauthsdk.ErrorCodeUnauthorizedClient)
	case errors.Is(err, registry.ErrInvalidScope):
		h.redirectError(w, req, oauthsdk.ErrorCodeInvalidScope)
	case errors.Is(err, registry.ErrAccessDenied), errors.Is(err, service.ErrAccessDenied):
		h.redirectError(w, req, oauthsdk.ErrorCodeAccessDenied)
	default:
		log.Error("authorize leg failed", "err", err)
		oauthsdk.ErrServerError.WriteError(w)
	}
}

func (h *AuthorizeHandler) redirectError(w http.ResponseWriter, req service.AuthorizeRequest, code string) {
	params := url.Values{"error": {code}}
	if req.State != "" {
		params.Set("state", req.State)
	}

	// A 302 needs somewhere to go. Without headers we fall back to a JSON
	// body carrying the same error code.
	target, err := url.Parse(req.RedirectURI)
	if err != nil || req.RedirectURI == "" {
		oauthsdk.NewOAuth2Error(http.StatusBadRequest, code, "").WriteError(w)
		return
	}

	useFragment := req.ResponseType == "token"
	writeRedirect(w, target, params, useFragment)
}

func redirect(w http.ResponseWriter, r *http.Request, base string, params url.Values, useFragment bool) {
	target, err := url.Parse(base)
	if err != nil {
		oauthsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	writeRedirect(w, target, params, useFragment)
}

func writeRedirect(w http.ResponseWriter, target *url.URL, params url.Values, useFragment bool) {
	if useFragment {
		target.Fragment = params.Encode()
	} else {
		query := target.Query()
		for key, values := range params {
			query[key] = values
		}
		target.RawQuery = query.Encode()
	}

	httpx.NoCache(w)
	w.Header().Set("Location", target.String())
	w.WriteHeader(http.StatusFound)
}
