package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/payprop/oauth2-server/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteJSON(rec, http.StatusTeapot, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	require.JSONEq(t, `{"hello":"world"}`, rec.Body.String())
}

func TestParseSpaceDelimitedFields(t *testing.T) {
	require.Nil(t, httpx.ParseSpaceDelimitedFields(""))
	require.Nil(t, httpx.ParseSpaceDelimitedFields("   "))
	require.Equal(t, []string{"act"}, httpx.ParseSpaceDelimitedFields("act"))
	require.Equal(t, []string{"act", "post_images"}, httpx.ParseSpaceDelimitedFields("act  post_images "))
}

func TestExtractBearerToken(t *testing.T) {
	t.Run("extracts the token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc123")
		require.Equal(t, "abc123", httpx.ExtractBearerToken(req))
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer abc123")
		require.Equal(t, "abc123", httpx.ExtractBearerToken(req))
	})

	t.Run("rejects other schemes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		require.Equal(t, "", httpx.ExtractBearerToken(req))
	})

	t.Run("empty when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		require.Equal(t, "", httpx.ExtractBearerToken(req))
	})
}

func TestChainOrdering(t *testing.T) {
	var order []string

	tag := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("outer"), tag("inner"))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestAuthContext(t *testing.T) {
	ctx := httpx.WithAuthContext(context.Background(), "client-1", "user-1", []string{"act"})

	require.Equal(t, "client-1", httpx.ClientIDFromContext(ctx))
	require.Equal(t, "user-1", httpx.UserIDFromContext(ctx))
	require.Equal(t, []string{"act"}, httpx.ScopesFromContext(ctx))

	empty := context.Background()
	require.Equal(t, "", httpx.ClientIDFromContext(empty))
	require.Equal(t, "", httpx.UserIDFromContext(empty))
	require.Nil(t, httpx.ScopesFromContext(empty))
}
