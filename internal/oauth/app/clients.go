package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store"
	"github.com/payprop/oauth2-server/pkg/cryptox"
)

// seedClient is one entry of the static client registry file. Secrets are
// plaintext in the file and hashed before they reach the store; an entry
// without a secret registers a public client.
type seedClient struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Secret string          `json:"secret,omitempty"`
	Scopes map[string]bool `json:"scopes"`
}

// seedClients loads the clients file and registers every entry. Clients that
// already exist in the store are left untouched, so restarting against a
// persistent database is safe.
func seedClients(ctx context.Context, st store.Store, path string, logger *slog.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read clients file: %w", err)
	}

	var entries []seedClient
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("failed to parse clients file: %w", err)
	}

	for _, entry := range entries {
		if entry.ID == "" {
			return fmt.Errorf("clients file entry without an id")
		}

		client := domain.Client{
			ID:     entry.ID,
			Name:   entry.Name,
			Scopes: entry.Scopes,
		}
		if entry.Secret != "" {
			hash, err := cryptox.HashSecret(entry.Secret)
			if err != nil {
				return fmt.Errorf("failed to hash secret for client %q: %w", entry.ID, err)
			}
			client.SecretHash = hash
		}

		err := st.Clients().CreateClient(ctx, client)
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			logger.Debug("client already registered", "client_id", entry.ID)
		case err != nil:
			return fmt.Errorf("failed to register client %q: %w", entry.ID, err)
		default:
			logger.Info("client registered", "client_id", entry.ID, "name", entry.Name)
		}
	}

	return nil
}
