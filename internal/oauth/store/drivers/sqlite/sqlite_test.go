package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store"
	"github.com/payprop/oauth2-server/internal/oauth/store/drivers/sqlite"
	"github.com/payprop/oauth2-server/pkg/idx"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "oauth2.db")
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.Ping(context.Background()))
	return st
}

func seedClient(t *testing.T, st *sqlite.Store, id string) domain.Client {
	t.Helper()
	c := domain.Client{
		ID:         id,
		Name:       "client-" + id,
		SecretHash: "$argon2id$fake",
		Scopes:     map[string]bool{"act": true, "track_location": false},
	}
	require.NoError(t, st.Clients().CreateClient(context.Background(), c))
	return c
}

func TestClientsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedClient(t, st, "1")

	got, err := st.Clients().GetClientByID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "client-1", got.Name)
	require.Equal(t, map[string]bool{"act": true, "track_location": false}, got.Scopes)

	t.Run("duplicate id", func(t *testing.T) {
		err := st.Clients().CreateClient(ctx, domain.Client{ID: "1", Name: "again"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := st.Clients().GetClientByID(ctx, "ghost")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list and delete", func(t *testing.T) {
		all, err := st.Clients().ListClients(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)

		require.NoError(t, st.Clients().DeleteClient(ctx, "1"))
		_, err = st.Clients().GetClientByID(ctx, "1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestUsersRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Users().CreateUser(ctx, domain.User{
		ID:           "u1",
		Username:     "alice",
		PasswordHash: "$argon2id$fake",
	}))

	byName, err := st.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "u1", byName.ID)

	_, err = st.Users().GetUserByUsername(ctx, "mallory")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuthorizationCodeSingleUse(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedClient(t, st, "1")

	code := domain.AuthorizationCode{
		ID:          idx.New().String(),
		ClientID:    "1",
		UserID:      "u1",
		CodeHash:    "hash-1",
		RedirectURI: "https://client.example.com/cb",
		Scopes:      []string{"act"},
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, st.AuthorizationCodes().CreateAuthorizationCode(ctx, code))

	got, err := st.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.Nil(t, got.UsedAt)
	require.Equal(t, []string{"act"}, got.Scopes)

	require.NoError(t, st.AuthorizationCodes().MarkAuthorizationCodeUsed(ctx, code.ID, "at-1"))

	// marking is the one-time gate: a second attempt finds no unused row
	err = st.AuthorizationCodes().MarkAuthorizationCodeUsed(ctx, code.ID, "at-2")
	require.ErrorIs(t, err, store.ErrNotFound)

	// the used record stays visible for replay detection
	got, err = st.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got.UsedAt)
	require.Equal(t, "at-1", got.AccessTokenID)
}

func TestExpiredCodeSweep(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedClient(t, st, "1")

	require.NoError(t, st.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
		ID:        idx.New().String(),
		ClientID:  "1",
		CodeHash:  "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	require.NoError(t, st.AuthorizationCodes().DeleteExpiredAuthorizationCodes(ctx))

	_, err := st.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, "stale")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func mintPair(t *testing.T, st *sqlite.Store, clientID, userID, suffix string) (domain.AccessToken, domain.RefreshToken) {
	t.Helper()
	ctx := context.Background()

	at := domain.AccessToken{
		ID:             "at-" + suffix,
		ClientID:       clientID,
		UserID:         userID,
		TokenHash:      "ath-" + suffix,
		Scopes:         []string{"act"},
		ExpiresAt:      time.Now().Add(time.Hour),
		RefreshTokenID: "rt-" + suffix,
	}
	rt := domain.RefreshToken{
		ID:            "rt-" + suffix,
		ClientID:      clientID,
		UserID:        userID,
		TokenHash:     "rth-" + suffix,
		Scopes:        []string{"act"},
		AccessTokenID: at.ID,
	}
	require.NoError(t, st.AccessTokens().CreateAccessToken(ctx, at))
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, rt))
	return at, rt
}

func TestRevocationCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedClient(t, st, "1")

	t.Run("access revocation takes the refresh token with it", func(t *testing.T) {
		at, rt := mintPair(t, st, "1", "u1", "a")
		require.NoError(t, st.AccessTokens().RevokeAccessToken(ctx, at.ID))

		gotAT, err := st.AccessTokens().GetAccessTokenByID(ctx, at.ID)
		require.NoError(t, err)
		require.True(t, gotAT.Revoked)

		gotRT, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, rt.TokenHash)
		require.NoError(t, err)
		require.True(t, gotRT.Revoked)
	})

	t.Run("refresh revocation leaves the access token alone", func(t *testing.T) {
		at, rt := mintPair(t, st, "1", "u1", "b")
		require.NoError(t, st.RefreshTokens().RevokeRefreshToken(ctx, rt.ID))

		gotRT, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, rt.TokenHash)
		require.NoError(t, err)
		require.True(t, gotRT.Revoked)

		gotAT, err := st.AccessTokens().GetAccessTokenByID(ctx, at.ID)
		require.NoError(t, err)
		require.False(t, gotAT.Revoked)
	})

	t.Run("revoke all for one identity spares others", func(t *testing.T) {
		atMine, _ := mintPair(t, st, "1", "victim", "c")
		atOther, _ := mintPair(t, st, "1", "bystander", "d")

		require.NoError(t, st.RefreshTokens().RevokeAllUserClientTokens(ctx, "1", "victim"))

		got, err := st.AccessTokens().GetAccessTokenByID(ctx, atMine.ID)
		require.NoError(t, err)
		require.True(t, got.Revoked)

		got, err = st.AccessTokens().GetAccessTokenByID(ctx, atOther.ID)
		require.NoError(t, err)
		require.False(t, got.Revoked)
	})
}

func TestDeleteAccessTokenEvictsOnlyTheRecord(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedClient(t, st, "1")
	at, rt := mintPair(t, st, "1", "u1", "e")

	require.NoError(t, st.AccessTokens().DeleteAccessToken(ctx, at.ID))

	_, err := st.AccessTokens().GetAccessTokenByID(ctx, at.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// the paired refresh token survives eviction unrevoked
	gotRT, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, rt.TokenHash)
	require.NoError(t, err)
	require.False(t, gotRT.Revoked)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedClient(t, st, "1")

	sentinel := errors.New("boom")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, domain.User{ID: "ephemeral", Username: "gone"}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = st.Users().GetUserByID(ctx, "ephemeral")
	require.ErrorIs(t, err, store.ErrNotFound)
}
