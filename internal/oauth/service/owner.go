package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/payprop/oauth2-server/internal/oauth/store"
	"github.com/payprop/oauth2-server/pkg/cryptox"
)

// Decision is the outcome of the resource-owner login and consent step on
// the authorize leg.
type Decision int

const (
	// DecisionAllowed means the resource owner is authenticated and has
	// approved the requested scopes.
	DecisionAllowed Decision = iota

	// DecisionDenied means the resource owner, or a policy acting for them,
	// refused the request. The engine redirects back with access_denied.
	DecisionDenied

	// DecisionDeferred means the gateway has already written a response
	// (typically a redirect to a login or consent page) and the engine must
	// stop without touching the ResponseWriter.
	DecisionDeferred
)

// OwnerGateway is the host's hook into the authorize leg: it authenticates
// the resource owner and collects consent for the requested scopes. The
// engine ships no login pages; embedding applications supply their own
// gateway backed by whatever session machinery they already have.
type OwnerGateway interface {
	// Decide returns the consent decision and, when allowed, the resource
	// owner's user ID. Deferred decisions must have written a response
	// before returning.
	Decide(w http.ResponseWriter, r *http.Request, clientID string, scopes []string) (Decision, string, error)
}

// StaticOwner is the default OwnerGateway: every request is treated as an
// already-authenticated, consenting resource owner with a fixed user ID.
// Useful for tests and machine-facing deployments; interactive hosts replace
// it.
type StaticOwner struct {
	UserID string
}

func (o StaticOwner) Decide(w http.ResponseWriter, r *http.Request, clientID string, scopes []string) (Decision, string, error) {
	return DecisionAllowed, o.UserID, nil
}

// DenyAllOwner refuses every authorization request. Hosts that only serve
// machine grants can install it to hard-disable the front channel.
type DenyAllOwner struct{}

func (DenyAllOwner) Decide(w http.ResponseWriter, r *http.Request, clientID string, scopes []string) (Decision, string, error) {
	return DecisionDenied, "", nil
}

// PasswordVerifier checks resource owner credentials for the password grant.
type PasswordVerifier interface {
	// VerifyPassword returns the user ID when the credentials are valid and
	// ErrInvalidGrant otherwise.
	VerifyPassword(ctx context.Context, username, password string) (string, error)
}

// StoreVerifier is the default PasswordVerifier, backed by the grant store's
// Users repository and argon2id hashes.
type StoreVerifier struct {
	Store store.Store
}

func (v StoreVerifier) VerifyPassword(ctx context.Context, username, password string) (string, error) {
	u, err := v.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidGrant
		}
		return "", err
	}
	if err := cryptox.VerifySecret(password, u.PasswordHash); err != nil {
		return "", ErrInvalidGrant
	}
	return u.ID, nil
}
