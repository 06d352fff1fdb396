package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/payprop/oauth2-server/internal/oauth/store"
	"github.com/payprop/oauth2-server/pkg/cryptox"
	"github.com/payprop/oauth2-server/pkg/tokenx"
)

func TestGateVerify(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.ExchangePassword(ctx, testClientID, testClientSecret, "alice", "hunter2", []string{"act", "post_images"})
	require.NoError(t, err)

	t.Run("valid token yields its identity", func(t *testing.T) {
		identity, err := env.gate.Verify(ctx, pair.AccessToken, []string{"act"})
		require.NoError(t, err)
		require.Equal(t, testClientID, identity.ClientID)
		require.Equal(t, testUserID, identity.UserID)
		require.ElementsMatch(t, []string{"act", "post_images"}, identity.Scopes)
	})

	t.Run("no required scopes means any live token passes", func(t *testing.T) {
		_, err := env.gate.Verify(ctx, pair.AccessToken, nil)
		require.NoError(t, err)
	})

	t.Run("missing scope", func(t *testing.T) {
		_, err := env.gate.Verify(ctx, pair.AccessToken, []string{"annoy_friends"})
		require.ErrorIs(t, err, ErrInsufficientScope)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := env.gate.Verify(ctx, "", nil)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := env.gate.Verify(ctx, "never-issued-value", nil)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := env.gate.Verify(ctx, pair.RefreshToken, nil)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("revoked token", func(t *testing.T) {
		require.NoError(t, env.tokens.RevokeToken(ctx, testClientID, testClientSecret, pair.AccessToken))
		_, err := env.gate.Verify(ctx, pair.AccessToken, []string{"act"})
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestGateExpiryEvictsButSparesRefresh(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	// a sibling service minting already-expired access tokens
	expiring := &TokenService{
		Store:     env.store,
		Registry:  env.registry,
		Codec:     env.tokens.Codec,
		Passwords: env.tokens.Passwords,
		AccessTTL: -time.Minute,
	}

	pair, err := expiring.ExchangePassword(ctx, testClientID, testClientSecret, "alice", "hunter2", nil)
	require.NoError(t, err)

	_, err = env.gate.Verify(ctx, pair.AccessToken, nil)
	require.ErrorIs(t, err, ErrInvalidToken)

	// the dead record was evicted outright, not revoked
	_, err = env.store.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(pair.AccessToken))
	require.ErrorIs(t, err, store.ErrNotFound)

	// which leaves its refresh token redeemable for a fresh pair
	next, err := env.tokens.ExchangeRefreshToken(ctx, testClientID, testClientSecret, pair.RefreshToken, nil)
	require.NoError(t, err)

	_, err = env.gate.Verify(ctx, next.AccessToken, nil)
	require.NoError(t, err)
}

func TestGateSignedCodec(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	codec, err := tokenx.NewSignedHS256("https://auth.example.com", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	tokens := &TokenService{
		Store:     env.store,
		Registry:  env.registry,
		Codec:     codec,
		Passwords: env.tokens.Passwords,
		AccessTTL: time.Hour,
	}
	gate := &GateService{Store: env.store, Codec: codec}

	pair, err := tokens.ExchangePassword(ctx, testClientID, testClientSecret, "alice", "hunter2", []string{"act"})
	require.NoError(t, err)

	t.Run("valid signed token", func(t *testing.T) {
		identity, err := gate.Verify(ctx, pair.AccessToken, []string{"act"})
		require.NoError(t, err)
		require.Equal(t, testUserID, identity.UserID)
	})

	t.Run("refresh presented as access is rejected by type", func(t *testing.T) {
		_, err := gate.Verify(ctx, pair.RefreshToken, nil)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered signature", func(t *testing.T) {
		forged := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
		_, err := gate.Verify(ctx, forged, nil)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestGateIntrospect(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.tokens.ExchangeClientCredentials(ctx, testClientID, testClientSecret, []string{"act"})
	require.NoError(t, err)

	t.Run("active token", func(t *testing.T) {
		record, active := env.gate.Introspect(ctx, pair.AccessToken)
		require.True(t, active)
		require.Equal(t, testClientID, record.ClientID)
		require.Equal(t, []string{"act"}, record.Scopes)
	})

	t.Run("unknown token is inactive", func(t *testing.T) {
		_, active := env.gate.Introspect(ctx, "never-issued")
		require.False(t, active)
	})

	t.Run("revoked token is inactive", func(t *testing.T) {
		require.NoError(t, env.tokens.RevokeToken(ctx, testClientID, testClientSecret, pair.AccessToken))
		_, active := env.gate.Introspect(ctx, pair.AccessToken)
		require.False(t, active)
	})
}
