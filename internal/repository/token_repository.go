package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qrattendance/internal/models"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

const tokenColumns = `id, principal_kind, principal_id, name, refresh_token_hash, revoked, expires_at, refresh_expires_at, created_at, last_used_at`

func (r *TokenRepository) Create(ctx context.Context, token models.AccessToken) error {
	const query = `
		INSERT INTO access_tokens (
			id, principal_kind, principal_id, name, refresh_token_hash, revoked, expires_at, refresh_expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, FALSE, $6, $7, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.PrincipalKind,
		token.PrincipalID,
		token.Name,
		token.RefreshTokenHash,
		token.ExpiresAt,
		token.RefreshExpiresAt,
	)
	return err
}

func (r *TokenRepository) GetByID(ctx context.Context, id string) (models.AccessToken, error) {
	const query = `SELECT ` + tokenColumns + ` FROM access_tokens WHERE id = $1`
	return scanToken(r.pool.QueryRow(ctx, query, id))
}

func (r *TokenRepository) FindByRefreshHash(ctx context.Context, kind models.PrincipalKind, hash []byte) (models.AccessToken, error) {
	const query = `SELECT ` + tokenColumns + ` FROM access_tokens WHERE principal_kind = $1 AND refresh_token_hash = $2`
	return scanToken(r.pool.QueryRow(ctx, query, kind, hash))
}

// Revoke marks a live token revoked. Revoking an already revoked token
// reports ErrTokenNotFound so two concurrent refreshes cannot both win.
func (r *TokenRepository) Revoke(ctx context.Context, id string) error {
	const query = `UPDATE access_tokens SET revoked = TRUE WHERE id = $1 AND NOT revoked`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepository) Touch(ctx context.Context, id string) error {
	const query = `UPDATE access_tokens SET last_used_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// Prune deletes tokens that can no longer authenticate or refresh.
func (r *TokenRepository) Prune(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		DELETE FROM access_tokens
		WHERE revoked
		   OR (expires_at < $1 AND (refresh_expires_at IS NULL OR refresh_expires_at < $1))
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanToken(row pgx.Row) (models.AccessToken, error) {
	var token models.AccessToken
	if err := row.Scan(
		&token.ID,
		&token.PrincipalKind,
		&token.PrincipalID,
		&token.Name,
		&token.RefreshTokenHash,
		&token.Revoked,
		&token.ExpiresAt,
		&token.RefreshExpiresAt,
		&token.CreatedAt,
		&token.LastUsedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AccessToken{}, ErrTokenNotFound
		}
		return models.AccessToken{}, err
	}
	return token, nil
}
