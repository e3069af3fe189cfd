package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qrattendance/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users AS u (name, email, password_hash, force_password_change, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + userColumns

	var created models.User
	err := r.pool.QueryRow(ctx, query,
		user.Name,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.PasswordHash,
		user.ForcePasswordChange,
	).Scan(userDest(&created)...)
	if err != nil {
		return models.User{}, mapWriteError("users", err)
	}
	return created, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.email = $1 AND u.deleted_at IS NULL`
	return r.scanOne(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1 AND u.deleted_at IS NULL`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// SetPassword stores hash (nil clears it) together with the force flag.
func (r *UserRepository) SetPassword(ctx context.Context, id int64, hash []byte, force bool) error {
	const query = `
		UPDATE users SET password_hash = $2, force_password_change = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, id, hash, force)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanOne(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(userDest(&user)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
