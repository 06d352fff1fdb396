package sqlite

import (
	"context"
	"time"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store"
)

type accessTokensRepo struct {
	db dbtx
}

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens
			(id, client_id, user_id, token_hash, scopes, expires_at,
			 refresh_token_id, auth_code_id, revoked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClientID, t.UserID, t.TokenHash, joinScopes(t.Scopes),
		t.ExpiresAt, t.RefreshTokenID, t.AuthCodeID, t.Revoked,
	)
	return mapErr(err)
}

func (r *accessTokensRepo) GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error) {
	return r.getAccessToken(ctx, `token_hash`, hash)
}

func (r *accessTokensRepo) GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error) {
	return r.getAccessToken(ctx, `id`, id)
}

func (r *accessTokensRepo) getAccessToken(ctx context.Context, column, key string) (domain.AccessToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, token_hash, scopes, expires_at,
		       refresh_token_id, auth_code_id, revoked, created_at
		FROM access_tokens WHERE `+column+` = ?`, key,
	)

	var t domain.AccessToken
	var scopes string
	err := row.Scan(&t.ID, &t.ClientID, &t.UserID, &t.TokenHash, &scopes,
		&t.ExpiresAt, &t.RefreshTokenID, &t.AuthCodeID, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return domain.AccessToken{}, mapErr(err)
	}
	t.Scopes = splitScopes(scopes)
	return t, nil
}

// RevokeAccessToken revokes the access token and its paired refresh token.
// Callers needing atomicity run this inside WithTx.
func (r *accessTokensRepo) RevokeAccessToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1 WHERE access_token_id = ?`, id)
	return err
}

func (r *accessTokensRepo) DeleteAccessToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *accessTokensRepo) DeleteExpiredAccessTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM access_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
