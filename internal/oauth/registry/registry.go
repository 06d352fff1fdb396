// Package registry validates and authenticates OAuth2 clients against the
// grant store. Hosts embedding the server can replace the verification
// predicate by supplying their own ClientVerifier.
package registry

import (
	"context"
	"errors"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store"
	"github.com/payprop/oauth2-server/pkg/cryptox"
	"github.com/payprop/oauth2-server/pkg/slogx"
)

var (
	// ErrUnauthorizedClient is returned when the client is unknown.
	ErrUnauthorizedClient = errors.New("unauthorized_client")

	// ErrInvalidScope is returned when a requested scope is not registered
	// for the client.
	ErrInvalidScope = errors.New("invalid_scope")

	// ErrAccessDenied is returned when a requested scope is registered but
	// disabled for the client.
	ErrAccessDenied = errors.New("access_denied")

	// ErrInvalidClient is returned when client authentication fails.
	ErrInvalidClient = errors.New("invalid_client")
)

// ClientVerifier decides whether a client may request the given scopes.
// The returned error is one of the sentinel errors above; nil means allowed.
type ClientVerifier interface {
	VerifyClient(ctx context.Context, clientID string, scopes []string) error
}

// Registry is the default ClientVerifier, backed by the grant store's
// Clients repository. It also authenticates confidential clients.
type Registry struct {
	Store store.Store

	// Verifier, when set, overrides the store-backed verification.
	Verifier ClientVerifier
}

// VerifyClient checks that the client exists and may be granted every
// requested scope. Errors are ordered: unknown client, then unknown scope,
// then disabled scope.
func (r *Registry) VerifyClient(ctx context.Context, clientID string, scopes []string) error {
	if r.Verifier != nil {
		return r.Verifier.VerifyClient(ctx, clientID, scopes)
	}

	l := slogx.FromContext(ctx)

	client, err := r.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("client verification failed: unknown client", "client_id", clientID)
			return ErrUnauthorizedClient
		}
		return err
	}

	for _, scope := range scopes {
		enabled, known := client.Scopes[scope]
		if !known {
			l.Info("client verification failed: unknown scope",
				"client_id", clientID, "scope", scope)
			return ErrInvalidScope
		}
		if !enabled {
			l.Info("client verification failed: scope disabled",
				"client_id", clientID, "scope", scope)
			return ErrAccessDenied
		}
	}

	return nil
}

// Authenticate verifies a confidential client's credentials and returns the
// client record. Public clients (no secret hash) authenticate with an empty
// secret.
func (r *Registry) Authenticate(ctx context.Context, clientID, clientSecret string) (domain.Client, error) {
	l := slogx.FromContext(ctx)

	client, err := r.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("client authentication failed: unknown client", "client_id", clientID)
			return domain.Client{}, ErrInvalidClient
		}
		return domain.Client{}, err
	}

	if client.SecretHash == "" {
		if clientSecret != "" {
			l.Info("client authentication failed: secret supplied for public client",
				"client_id", clientID)
			return domain.Client{}, ErrInvalidClient
		}
		return client, nil
	}

	if err := cryptox.VerifySecret(clientSecret, client.SecretHash); err != nil {
		l.Info("client authentication failed: bad secret", "client_id", clientID)
		return domain.Client{}, ErrInvalidClient
	}

	return client, nil
}
