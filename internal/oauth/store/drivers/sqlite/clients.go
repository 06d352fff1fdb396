package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store"
)

type clientsRepo struct {
	db dbtx
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	scopes, err := json.Marshal(c.Scopes)
	if err != nil {
		return fmt.Errorf("failed to encode client scopes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, secret_hash, scopes)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.SecretHash, string(scopes),
	)
	return mapErr(err)
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(secret_hash, ''), scopes, created_at
		FROM clients WHERE id = ?`, id,
	)
	return scanClient(row)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(secret_hash, ''), scopes, created_at
		FROM clients ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *clientsRepo) DeleteClient(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var c domain.Client
	var scopes string
	if err := row.Scan(&c.ID, &c.Name, &c.SecretHash, &scopes, &c.CreatedAt); err != nil {
		return domain.Client{}, mapErr(err)
	}
	if err := json.Unmarshal([]byte(scopes), &c.Scopes); err != nil {
		return domain.Client{}, fmt.Errorf("failed to decode client scopes: %w", err)
	}
	return c, nil
}
