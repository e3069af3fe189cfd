package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qrattendance/internal/models"
	"qrattendance/internal/scope"
)

type LocationFilter struct {
	Scope       scope.Predicate
	ActiveOnly  bool
	WithTrashed bool
}

type LocationRepository struct {
	pool *pgxpool.Pool
}

func NewLocationRepository(pool *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{pool: pool}
}

func (r *LocationRepository) Create(ctx context.Context, l models.Location) (models.Location, error) {
	const query = `
		INSERT INTO locations AS l (user_id, name, address, city, latitude, longitude, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + locationColumns

	var created models.Location
	err := r.pool.QueryRow(ctx, query,
		l.UserID,
		l.Name,
		l.Address,
		l.City,
		l.Latitude,
		l.Longitude,
		l.Description,
		l.IsActive,
	).Scan(locationDest(&created)...)
	if err != nil {
		return models.Location{}, mapWriteError("locations", err)
	}
	return created, nil
}

func (r *LocationRepository) Update(ctx context.Context, l models.Location) (models.Location, error) {
	const query = `
		UPDATE locations AS l SET
			name = $2, address = $3, city = $4, latitude = $5, longitude = $6,
			description = $7, is_active = $8, updated_at = NOW()
		WHERE l.id = $1 AND l.deleted_at IS NULL
		RETURNING ` + locationColumns

	var updated models.Location
	err := r.pool.QueryRow(ctx, query,
		l.ID,
		l.Name,
		l.Address,
		l.City,
		l.Latitude,
		l.Longitude,
		l.Description,
		l.IsActive,
	).Scan(locationDest(&updated)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Location{}, ErrLocationNotFound
		}
		return models.Location{}, mapWriteError("locations", err)
	}
	return updated, nil
}

func (r *LocationRepository) GetByID(ctx context.Context, id int64, withTrashed bool) (models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l WHERE l.id = $1`
	if !withTrashed {
		query += ` AND l.deleted_at IS NULL`
	}
	var l models.Location
	if err := r.pool.QueryRow(ctx, query, id).Scan(locationDest(&l)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Location{}, ErrLocationNotFound
		}
		return models.Location{}, err
	}
	return l, nil
}

// List returns the locations visible through filter with their attendance
// counts.
func (r *LocationRepository) List(ctx context.Context, filter LocationFilter) ([]models.Location, error) {
	var params args
	clause, scopeArgs := filter.Scope.SQL("l.user_id", 1)
	params = append(params, scopeArgs...)

	where := []string{clause}
	if !filter.WithTrashed {
		where = append(where, "l.deleted_at IS NULL")
	}
	if filter.ActiveOnly {
		where = append(where, "l.is_active")
	}

	query := fmt.Sprintf(`
		SELECT %s, (SELECT COUNT(*) FROM attendances a WHERE a.location_id = l.id)
		FROM locations l
		WHERE %s
		ORDER BY l.id
	`, locationColumns, strings.Join(where, " AND "))

	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		var (
			l     models.Location
			count int64
		)
		if err := rows.Scan(append(locationDest(&l), &count)...); err != nil {
			return nil, err
		}
		l.AttendancesCount = &count
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (r *LocationRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `UPDATE locations SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLocationNotFound
	}
	return nil
}
