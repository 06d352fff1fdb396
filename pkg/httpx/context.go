package httpx

import "context"

type ctxKey string

const (
	CtxKeyClientID ctxKey = "client_id"
	CtxKeyUserID   ctxKey = "user_id"
	CtxKeyScopes   ctxKey = "scopes"
)

// WithAuthContext records the verified bearer identity for downstream
// handlers and key extractors.
func WithAuthContext(ctx context.Context, clientID, userID string, scopes []string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyClientID, clientID)
	ctx = context.WithValue(ctx, CtxKeyUserID, userID)
	ctx = context.WithValue(ctx, CtxKeyScopes, scopes)
	return ctx
}

// ClientIDFromContext returns the verified client ID, or "".
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyClientID).(string); ok {
		return v
	}
	return ""
}

// UserIDFromContext returns the verified user ID, or "".
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// ScopesFromContext returns the verified token scopes, or nil.
func ScopesFromContext(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyScopes).([]string); ok {
		return v
	}
	return nil
}
