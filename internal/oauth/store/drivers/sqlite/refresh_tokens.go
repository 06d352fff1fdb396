package sqlite

import (
	"context"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens
			(id, client_id, user_id, token_hash, scopes,
			 access_token_id, auth_code_id, revoked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClientID, t.UserID, t.TokenHash, joinScopes(t.Scopes),
		t.AccessTokenID, t.AuthCodeID, t.Revoked,
	)
	return mapErr(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, token_hash, scopes,
		       access_token_id, auth_code_id, revoked, created_at
		FROM refresh_tokens WHERE token_hash = ?`, hash,
	)

	var t domain.RefreshToken
	var scopes string
	err := row.Scan(&t.ID, &t.ClientID, &t.UserID, &t.TokenHash, &scopes,
		&t.AccessTokenID, &t.AuthCodeID, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapErr(err)
	}
	t.Scopes = splitScopes(scopes)
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RevokeAllUserClientTokens revokes every refresh token for the
// (client, user) identity along with each paired access token. Enforces the
// single active refresh token per identity rule.
func (r *refreshTokensRepo) RevokeAllUserClientTokens(ctx context.Context, clientID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked = 1
		WHERE id IN (
			SELECT access_token_id FROM refresh_tokens
			WHERE client_id = ? AND user_id = ? AND access_token_id != ''
		)`, clientID, userID)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1
		WHERE client_id = ? AND user_id = ?`, clientID, userID)
	return err
}
