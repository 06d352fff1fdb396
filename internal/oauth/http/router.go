package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/payprop/oauth2-server/internal/oauth/registry"
	"github.com/payprop/oauth2-server/internal/oauth/service"
	"github.com/payprop/oauth2-server/internal/oauth/store"
	"github.com/payprop/oauth2-server/pkg/httpx"
	"github.com/payprop/oauth2-server/pkg/oauthsdk"
	"github.com/payprop/oauth2-server/pkg/slogx"

	_ "github.com/payprop/oauth2-server/api/oauth2" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	authorizeRoute   string
	accessTokenRoute string
	logger           *slog.Logger
	startTime        time.Time

	// BuildVersion is reported by the health endpoints.
	BuildVersion string

	Registry         *registry.Registry
	AuthorizeService *service.AuthorizeService
	TokenService     *service.TokenService
	GateService      *service.GateService
	Store            store.Store
}

// NewRouter builds a Router with the default middleware chain. The authorize
// and access token routes are configurable because embedding applications
// mount this server under paths of their own choosing; empty strings select
// the defaults.
func NewRouter(authorizeRoute, accessTokenRoute string, logger *slog.Logger) *Router {
	if authorizeRoute == "" {
		authorizeRoute = oauthsdk.DefaultAuthorizeRoute
	}
	if accessTokenRoute == "" {
		accessTokenRoute = oauthsdk.DefaultAccessTokenRoute
	}

	r := &Router{
		Mux:              http.NewServeMux(),
		authorizeRoute:   authorizeRoute,
		accessTokenRoute: accessTokenRoute,
		logger:           logger,
		startTime:        time.Now(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			OAuth2 Authorization Server API
//	@version		0.1.0
//	@description	An embeddable RFC 6749 authorization and resource server core.
//	@description
//	@description				Supports the authorization_code (with refresh rotation), implicit,
//	@description				client_credentials and password grants. Tokens are opaque by default
//	@description				with an optional JWT strategy.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		Logger:           r.logger,
	}

	// GET /authorize - lenient rate limit (mostly just displays forms)
	r.Mux.Handle("GET "+r.authorizeRoute,
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /authorize - strict rate limit (may carry authentication attempts)
	r.Mux.Handle("POST "+r.authorizeRoute,
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	// POST /access_token - strict rate limit by IP (covers all grant types)
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST "+r.accessTokenRoute,
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	// POST /revoke - moderate rate limit
	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Introspection endpoint (RFC7662) - caller authenticates as a client
	introspectHandler := &IntrospectHandler{
		Registry:    r.Registry,
		GateService: r.GateService,
	}
	r.Mux.Handle("POST /oauth/introspect",
		httpx.Chain(introspectHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.BuildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.BuildVersion, r.Store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
