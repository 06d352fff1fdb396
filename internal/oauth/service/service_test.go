package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/registry"
	"github.com/payprop/oauth2-server/internal/oauth/store/drivers/memory"
	"github.com/payprop/oauth2-server/pkg/cryptox"
	"github.com/payprop/oauth2-server/pkg/tokenx"
)

const (
	testClientID     = "1"
	testClientSecret = "boo"
	testRedirectURI  = "https://client.example.com/cb"
	testUserID       = "user-1"
)

type testEnv struct {
	store     *memory.Store
	registry  *registry.Registry
	authorize *AuthorizeService
	tokens    *TokenService
	gate      *GateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := memory.NewStore()
	ctx := context.Background()

	secretHash, err := cryptox.HashSecret(testClientSecret)
	require.NoError(t, err)
	require.NoError(t, st.Clients().CreateClient(ctx, domain.Client{
		ID:         testClientID,
		Name:       "test-client",
		SecretHash: secretHash,
		Scopes: map[string]bool{
			"act":            true,
			"post_images":    true,
			"annoy_friends":  true,
			"track_location": false,
		},
	}))

	passwordHash, err := cryptox.HashSecret("hunter2")
	require.NoError(t, err)
	require.NoError(t, st.Users().CreateUser(ctx, domain.User{
		ID:           testUserID,
		Username:     "alice",
		PasswordHash: passwordHash,
	}))

	reg := &registry.Registry{Store: st}
	codec := tokenx.NewOpaque()

	return &testEnv{
		store:    st,
		registry: reg,
		authorize: &AuthorizeService{
			Store:     st,
			Registry:  reg,
			Codec:     codec,
			Gateway:   StaticOwner{UserID: testUserID},
			CodeTTL:   10 * time.Minute,
			AccessTTL: time.Hour,
		},
		tokens: &TokenService{
			Store:     st,
			Registry:  reg,
			Codec:     codec,
			Passwords: StoreVerifier{Store: st},
			AccessTTL: time.Hour,
		},
		gate: &GateService{
			Store: st,
			Codec: codec,
		},
	}
}
