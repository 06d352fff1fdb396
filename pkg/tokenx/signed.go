package tokenx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// signedClaims is the JWT payload for the Signed strategy.
type signedClaims struct {
	jwt.RegisteredClaims

	ClientID string    `json:"cid"`
	Type     TokenType `json:"typ"`
	Scopes   []string  `json:"scopes,omitempty"`
}

// Signed mints self-contained JWTs. Verification recomputes the signature
// and checks expiry without a store lookup; revocation bookkeeping still
// happens in the grant store because a signed token cannot be un-signed.
type Signed struct {
	issuer string
	method jwt.SigningMethod
	signKey any
	verifyKey any
}

var _ Codec = (*Signed)(nil)

// NewSignedHS256 builds a Signed codec from a shared secret.
func NewSignedHS256(issuer string, secret []byte) (*Signed, error) {
	if len(secret) == 0 {
		return nil, errors.New("tokenx: empty HS256 secret")
	}
	return &Signed{
		issuer:    issuer,
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
	}, nil
}

// NewSignedEdDSA builds a Signed codec from an Ed25519 private key.
func NewSignedEdDSA(issuer string, key ed25519.PrivateKey) (*Signed, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("tokenx: invalid Ed25519 private key size")
	}
	return &Signed{
		issuer:    issuer,
		method:    jwt.SigningMethodEdDSA,
		signKey:   key,
		verifyKey: key.Public(),
	}, nil
}

func (s *Signed) Issue(c Claims) (string, error) {
	now := c.IssuedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	jti := c.ID
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := signedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   c.UserID,
			Audience:  jwt.ClaimStrings{c.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
		ClientID: c.ClientID,
		Type:     c.Type,
		Scopes:   c.Scopes,
	}
	// Refresh tokens carry no expiry; omit exp rather than encode the zero time.
	if !c.ExpiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(c.ExpiresAt)
	}

	return jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
}

func (s *Signed) Parse(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &signedClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("%w: alg %q", ErrInvalidToken, t.Method.Alg())
		}
		return s.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*signedClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		ID:       claims.ID,
		ClientID: claims.ClientID,
		UserID:   claims.Subject,
		Type:     claims.Type,
		Scopes:   claims.Scopes,
	}
	if len(claims.Audience) > 0 {
		out.Audience = claims.Audience[0]
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
