package domain

import "time"

// TokenPair is what the token endpoint returns: the bearer access token and
// its paired refresh token (empty for grants that issue none).
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	TokenType    string        `json:"token_type,omitempty"` // always "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until access token expiry
	Scope        string        `json:"scope,omitempty"`      // space-delimited
}

// AccessToken models the stored access token record.
type AccessToken struct {
	ID             string
	ClientID       string
	UserID         string
	TokenHash      string // deterministic fingerprint (base64url SHA-256)
	Scopes         []string
	ExpiresAt      time.Time
	RefreshTokenID string // paired refresh token, empty if none issued
	AuthCodeID     string // originating authorization code, empty for other grants
	Revoked        bool
	CreatedAt      time.Time
}

// RefreshToken models the stored refresh token record. The core enforces no
// expiry on refresh tokens; rotation and revocation bound their lifetime.
type RefreshToken struct {
	ID            string
	ClientID      string
	UserID        string
	TokenHash     string
	Scopes        []string
	AccessTokenID string // paired access token
	AuthCodeID    string // originating authorization code, if any
	Revoked       bool
	CreatedAt     time.Time
}

// Identity is the result of a successful token verification: who the bearer
// acts as, and with which scopes. For client_credentials tokens UserID equals
// ClientID.
type Identity struct {
	ClientID string
	UserID   string
	Scopes   []string
}

// HasScopes reports whether the identity carries every required scope.
func (id Identity) HasScopes(required []string) bool {
	have := make(map[string]struct{}, len(id.Scopes))
	for _, s := range id.Scopes {
		have[s] = struct{}{}
	}
	for _, want := range required {
		if _, ok := have[want]; !ok {
			return false
		}
	}
	return true
}
