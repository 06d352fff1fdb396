package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store/drivers/memory"
	"github.com/payprop/oauth2-server/pkg/cryptox"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	st := memory.NewStore()

	hash, err := cryptox.HashSecret("boo")
	require.NoError(t, err)

	require.NoError(t, st.Clients().CreateClient(context.Background(), domain.Client{
		ID:         "1",
		Name:       "test-client",
		SecretHash: hash,
		Scopes: map[string]bool{
			"act":            true,
			"post_images":    true,
			"track_location": false,
		},
	}))

	return &Registry{Store: st}
}

func TestVerifyClient(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	t.Run("allows grantable scopes", func(t *testing.T) {
		require.NoError(t, reg.VerifyClient(ctx, "1", []string{"act", "post_images"}))
	})

	t.Run("allows empty scope list", func(t *testing.T) {
		require.NoError(t, reg.VerifyClient(ctx, "1", nil))
	})

	t.Run("unknown client", func(t *testing.T) {
		err := reg.VerifyClient(ctx, "nope", []string{"act"})
		require.ErrorIs(t, err, ErrUnauthorizedClient)
	})

	t.Run("unknown scope", func(t *testing.T) {
		err := reg.VerifyClient(ctx, "1", []string{"sleep"})
		require.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("disabled scope", func(t *testing.T) {
		err := reg.VerifyClient(ctx, "1", []string{"track_location"})
		require.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("unknown scope wins over disabled", func(t *testing.T) {
		// ordering: the first failing scope in request order decides
		err := reg.VerifyClient(ctx, "1", []string{"sleep", "track_location"})
		require.ErrorIs(t, err, ErrInvalidScope)
	})
}

type denyAllVerifier struct{}

func (denyAllVerifier) VerifyClient(ctx context.Context, clientID string, scopes []string) error {
	return ErrAccessDenied
}

func TestVerifyClientOverride(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	reg.Verifier = denyAllVerifier{}

	err := reg.VerifyClient(context.Background(), "1", []string{"act"})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		client, err := reg.Authenticate(ctx, "1", "boo")
		require.NoError(t, err)
		require.Equal(t, "1", client.ID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := reg.Authenticate(ctx, "1", "letmein")
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := reg.Authenticate(ctx, "ghost", "boo")
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("public client authenticates with empty secret", func(t *testing.T) {
		require.NoError(t, reg.Store.Clients().CreateClient(ctx, domain.Client{
			ID:     "public-app",
			Name:   "spa",
			Scopes: map[string]bool{"act": true},
		}))

		client, err := reg.Authenticate(ctx, "public-app", "")
		require.NoError(t, err)
		require.Empty(t, client.SecretHash)

		_, err = reg.Authenticate(ctx, "public-app", "anything")
		require.ErrorIs(t, err, ErrInvalidClient)
	})
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	t.Parallel()

	errs := []error{ErrUnauthorizedClient, ErrInvalidScope, ErrAccessDenied, ErrInvalidClient}
	for i, a := range errs {
		for j, b := range errs {
			if i == j {
				continue
			}
			require.False(t, errors.Is(a, b))
		}
	}
}
