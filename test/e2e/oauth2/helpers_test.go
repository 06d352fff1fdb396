package oauth2_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/payprop/oauth2-server/internal/oauth/app"
	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/pkg/cryptox"
)

/*
 * Common constants and helpers for end-to-end tests. The server runs
 * in-process against the in-memory store, seeded through the same clients
 * file mechanism the binary uses.
 */

const (
	clientID     = "1"
	clientSecret = "boo"
	redirectURI  = "https://client.example.com/cb"
	ownerID      = "owner"

	username     = "alice"
	userPassword = "hunter2"
)

type seedEntry struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Secret string          `json:"secret,omitempty"`
	Scopes map[string]bool `json:"scopes"`
}

func writeClientsFile(t *testing.T) string {
	t.Helper()

	entries := []seedEntry{
		{
			ID:     clientID,
			Name:   "e2e-client",
			Secret: clientSecret,
			Scopes: map[string]bool{
				"act":            true,
				"post_images":    true,
				"track_location": false,
			},
		},
		{
			ID:     "tracker",
			Name:   "e2e-tracker",
			Secret: clientSecret,
			Scopes: map[string]bool{"track_location": true},
		},
	}

	raw, err := json.Marshal(entries)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "clients.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

// setupServer boots the full application in-process and serves it over a
// test listener. Returns the base URL and the application for direct access
// to the store and the gate.
func setupServer(t *testing.T, cfg app.Config) (string, *app.Application) {
	t.Helper()

	if cfg.ClientsFile == "" {
		cfg.ClientsFile = writeClientsFile(t)
	}
	if cfg.CodeTTL == 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.TokenStrategy == "" {
		cfg.TokenStrategy = "opaque"
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "oauth2-server-e2e"
	}
	cfg.LogLevel = "error"
	cfg.LogFormat = "text"
	cfg.HousekeepingInterval = time.Hour

	application, err := app.New(cfg)
	require.NoError(t, err)

	// the password grant needs a real user on file
	hash, err := cryptox.HashSecret(userPassword)
	require.NoError(t, err)
	require.NoError(t, application.Store().Users().CreateUser(context.Background(), domain.User{
		ID:           "user-1",
		Username:     username,
		PasswordHash: hash,
	}))

	server := httptest.NewServer(application.Router())
	t.Cleanup(server.Close)
	t.Cleanup(func() { _ = application.Store().Close() })

	return server.URL, application
}

// noRedirectClient returns an http.Client that surfaces 302s instead of
// following them, so tests can inspect the redirect the way a browser's
// network tab would.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 5 * time.Second,
	}
}

// authorize drives the front-channel leg and returns the code from the
// redirect Location.
func authorize(t *testing.T, authorizeURL string) string {
	t.Helper()

	resp, err := noRedirectClient().Get(authorizeURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Empty(t, loc.Query().Get("error"))

	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}
