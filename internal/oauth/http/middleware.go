package http

import (
	"errors"
	"net/http"

	"github.com/payprop/oauth2-server/internal/oauth/service"
	"github.com/payprop/oauth2-server/pkg/httpx"
	"github.com/payprop/oauth2-server/pkg/oauthsdk"
	"github.com/payprop/oauth2-server/pkg/slogx"
)

// RequireToken guards a protected resource behind the verification gate. The
// bearer token must be live and carry every scope listed; on success the
// caller's identity is injected into the request context for the handler.
//
// Every rejection is the same 401, whether the token was missing, unknown,
// revoked, expired or merely lacking a scope. Which gate tripped is logged
// server-side, never leaked to the caller.
func RequireToken(gate *service.GateService, scopes ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			identity, err := gate.Verify(ctx, httpx.ExtractBearerToken(r), scopes)
			if err != nil {
				if !errors.Is(err, service.ErrInvalidToken) && !errors.Is(err, service.ErrInsufficientScope) {
					log.Error("token verification errored", "err", err)
				}
				oauthsdk.ErrInvalidToken.WriteError(w)
				return
			}

			ctx = httpx.WithAuthContext(ctx, identity.ClientID, identity.UserID, identity.Scopes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
