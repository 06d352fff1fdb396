package domain

import "time"

// AuthorizationCode represents an OAuth 2.0 authorization code issuance.
//
// The record is kept after redemption (UsedAt set) rather than deleted, so a
// second exchange attempt is observable as a replay. AccessTokenID is the
// back-reference to whatever access token the first exchange produced; the
// replay cascade revokes through it.
type AuthorizationCode struct {
	ID            string
	ClientID      string
	UserID        string
	CodeHash      string // base64url SHA-256 fingerprint of the opaque code
	RedirectURI   string
	Scopes        []string
	ExpiresAt     time.Time
	UsedAt        *time.Time
	AccessTokenID string
	CreatedAt     time.Time
}
