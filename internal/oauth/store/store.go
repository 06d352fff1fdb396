package store

import (
	"context"
	"errors"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the grant store contract: the single shared mutable resource of
// the engine. Concrete drivers (memory, sqlite) implement this. It exposes
// sub-repositories to keep concerns tidy and testable.
//
// All lookups on missing keys return ErrNotFound, which the services map to
// ordinary OAuth2 error responses; a missing key is never a crash.
type Store interface {
	Clients() Clients
	Users() Users
	AuthorizationCodes() AuthorizationCodes
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// WithTx executes fn atomically. The check-and-mark-used gate on an
	// authorization code and the revoke-and-replace sequence during refresh
	// MUST run inside WithTx; a race on either is a token double-spend.
	// If fn returns an error the transaction is rolled back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still reachable.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped store.
type Tx interface {
	Clients() Clients
	Users() Users
	AuthorizationCodes() AuthorizationCodes
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens
}

type Clients interface {
	// GetClientByID fetches a client for verification or authentication.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// CreateClient inserts a new client. Registration is host-driven
	// (static config or admin tooling); there is no self-registration.
	CreateClient(ctx context.Context, c domain.Client) error

	// ListClients returns all registered clients.
	ListClients(ctx context.Context) ([]domain.Client, error)

	// DeleteClient removes a client registration.
	DeleteClient(ctx context.Context, id string) error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during the password grant.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	CreateUser(ctx context.Context, u domain.User) error
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a freshly minted authorization code.
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error

	// GetAuthorizationCodeByHash fetches a code by its hashed value when
	// redeeming. Used codes are still returned (UsedAt set) so callers can
	// detect replay.
	GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error)

	// MarkAuthorizationCodeUsed stamps UsedAt and records the access token
	// the exchange produced. This is the one-time-use gate; it must run in
	// the same transaction as the lookup.
	MarkAuthorizationCodeUsed(ctx context.Context, id, accessTokenID string) error

	// DeleteExpiredAuthorizationCodes removes codes past expiry. Replay
	// detection only needs the record until then.
	DeleteExpiredAuthorizationCodes(ctx context.Context) error
}

type AccessTokens interface {
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error

	// GetAccessTokenByHash returns the record regardless of revocation or
	// expiry; the verification gate applies those checks.
	GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error)

	GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error)

	// RevokeAccessToken flips revoked on the access token AND its paired
	// refresh token atomically.
	RevokeAccessToken(ctx context.Context, id string) error

	// DeleteAccessToken evicts a single record. Used for lazy expiry
	// eviction only; the paired refresh token is untouched and stays
	// redeemable.
	DeleteAccessToken(ctx context.Context, id string) error

	DeleteExpiredAccessTokens(ctx context.Context) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked on the refresh token only. Its paired
	// access token stays valid until its own expiry or revocation.
	RevokeRefreshToken(ctx context.Context, id string) error

	// RevokeAllUserClientTokens revokes every refresh token and paired
	// access token for a (client, user) identity. Enforces the one active
	// refresh token per identity rule.
	RevokeAllUserClientTokens(ctx context.Context, clientID, userID string) error
}
