package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/payprop/oauth2-server/internal/oauth/domain"
	"github.com/payprop/oauth2-server/internal/oauth/store"
)

type authorizationCodesRepo struct {
	db dbtx
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_codes
			(id, client_id, user_id, code_hash, redirect_uri, scopes, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.ID, code.ClientID, code.UserID, code.CodeHash,
		code.RedirectURI, joinScopes(code.Scopes), code.ExpiresAt,
	)
	return mapErr(err)
}

func (r *authorizationCodesRepo) GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, code_hash, redirect_uri, scopes,
		       expires_at, used_at, access_token_id, created_at
		FROM authorization_codes WHERE code_hash = ?`, hash,
	)

	var c domain.AuthorizationCode
	var scopes string
	var usedAt sql.NullTime
	err := row.Scan(&c.ID, &c.ClientID, &c.UserID, &c.CodeHash, &c.RedirectURI,
		&scopes, &c.ExpiresAt, &usedAt, &c.AccessTokenID, &c.CreatedAt)
	if err != nil {
		return domain.AuthorizationCode{}, mapErr(err)
	}

	c.Scopes = splitScopes(scopes)
	if usedAt.Valid {
		t := usedAt.Time
		c.UsedAt = &t
	}
	return c, nil
}

func (r *authorizationCodesRepo) MarkAuthorizationCodeUsed(ctx context.Context, id, accessTokenID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE authorization_codes
		SET used_at = ?, access_token_id = ?
		WHERE id = ? AND used_at IS NULL`,
		time.Now().UTC(), accessTokenID, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM authorization_codes WHERE expires_at < ?`, time.Now().UTC())
	return err
}
