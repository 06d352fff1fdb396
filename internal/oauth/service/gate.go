package service

import (
	"context"
	"errors"
	"time"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store"
	"github.com/payprop/oauth2-server/pkg/cryptox"
	"github.com/payprop/oauth2-server/pkg/slogx"
	"github.com/payprop/oauth2-server/pkg/tokenx"
)

// GateService verifies presented access tokens for resource-server use.
//
// The check order is: codec parse (cheap, stateless reject for signed
// tokens) then store lookup by fingerprint (revocation is only knowable
// there), then expiry, then scopes. Why a failure happened is logged but
// never told to the caller of the protected resource.
type GateService struct {
	Store store.Store
	Codec tokenx.Codec
}

// Verify checks the token and returns the identity it was issued to. The
// error is ErrInvalidToken for any authenticity, revocation or expiry
// failure, and ErrInsufficientScope when the token is good but lacks a
// required scope.
func (s *GateService) Verify(ctx context.Context, token string, required []string) (domain.Identity, error) {
	l := slogx.FromContext(ctx)

	if token == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	claims, err := s.Codec.Parse(token)
	switch {
	case err == nil:
		if claims.Type != tokenx.TypeAccess {
			l.Info("token verification failed", "reason", "wrong_token_type")
			return domain.Identity{}, ErrInvalidToken
		}
	case errors.Is(err, tokenx.ErrOpaqueToken):
		// All state lives in the store; fall through to the lookup.
	case errors.Is(err, tokenx.ErrExpired):
		// Reject now, and evict the store record so it does not linger
		// until the next housekeeping sweep.
		s.lazyEvictExpired(ctx, token)
		l.Info("token verification failed", "reason", "expired_signature")
		return domain.Identity{}, ErrInvalidToken
	default:
		l.Info("token verification failed", "reason", "bad_signature")
		return domain.Identity{}, ErrInvalidToken
	}

	record, err := s.Store.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("token verification failed", "reason", "unknown_token")
			return domain.Identity{}, ErrInvalidToken
		}
		return domain.Identity{}, err
	}

	if record.Revoked {
		l.Info("token verification failed", "reason", "revoked", "token_id", record.ID)
		return domain.Identity{}, ErrInvalidToken
	}

	if time.Now().After(record.ExpiresAt) {
		// Lazy expiry eviction. The paired refresh token is left alone; it
		// is still good for obtaining a replacement pair.
		if err := s.Store.AccessTokens().DeleteAccessToken(ctx, record.ID); err != nil &&
			!errors.Is(err, store.ErrNotFound) {
			l.Error("failed to evict expired access token", "error", err, "token_id", record.ID)
		}
		l.Info("token verification failed", "reason", "expired", "token_id", record.ID)
		return domain.Identity{}, ErrInvalidToken
	}

	identity := domain.Identity{
		ClientID: record.ClientID,
		UserID:   record.UserID,
		Scopes:   record.Scopes,
	}

	if !identity.HasScopes(required) {
		l.Info("token verification failed", "reason", "insufficient_scope", "token_id", record.ID)
		return domain.Identity{}, ErrInsufficientScope
	}

	return identity, nil
}

// Introspect reports a token's state per RFC 7662 without enforcing scopes.
// Unknown, revoked, and expired tokens are simply inactive.
func (s *GateService) Introspect(ctx context.Context, token string) (domain.AccessToken, bool) {
	record, err := s.Store.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		return domain.AccessToken{}, false
	}
	if record.Revoked || time.Now().After(record.ExpiresAt) {
		return domain.AccessToken{}, false
	}
	return record, true
}

func (s *GateService) lazyEvictExpired(ctx context.Context, token string) {
	record, err := s.Store.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		return
	}
	_ = s.Store.AccessTokens().DeleteAccessToken(ctx, record.ID)
}
