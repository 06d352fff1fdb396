// Package tokenx mints and parses the bearer strings used for authorization
// codes, access tokens, and refresh tokens.
//
// Two interchangeable strategies implement the same Codec contract: Opaque
// (random value, all state in the grant store) and Signed (self-contained
// JWT). The grant engines never branch on which strategy is active.
package tokenx

import (
	"errors"
	"time"
)

// TokenType distinguishes the three credential kinds a codec mints.
type TokenType string

const (
	TypeAuthCode TokenType = "auth"
	TypeAccess   TokenType = "access"
	TypeRefresh  TokenType = "refresh"
)

var (
	// ErrOpaqueToken is returned by Opaque.Parse: opaque tokens carry no
	// claims, everything lives in the grant store.
	ErrOpaqueToken = errors.New("tokenx: opaque token carries no embedded claims")

	ErrInvalidToken = errors.New("tokenx: invalid token")
	ErrExpired      = errors.New("tokenx: token expired")
	ErrWrongType    = errors.New("tokenx: unexpected token type")
)

// Claims is the payload a codec embeds (Signed) or ignores (Opaque).
type Claims struct {
	ID       string // unique per token; generated when empty
	ClientID string
	UserID   string
	Type     TokenType
	Scopes   []string
	Audience string // redirect_uri for authorization codes
	IssuedAt time.Time
	ExpiresAt time.Time
}

// Codec creates and parses bearer strings. Issue output must be safe in a
// URL query string without additional escaping.
type Codec interface {
	Issue(c Claims) (string, error)

	// Parse validates a token string and returns its claims. The Opaque
	// codec returns ErrOpaqueToken; the Signed codec verifies signature and
	// expiry statelessly.
	Parse(token string) (Claims, error)
}
