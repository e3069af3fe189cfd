package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qrattendance/internal/models"
)

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func (r *ReportRepository) Create(ctx context.Context, export models.ReportExport) error {
	const query = `
		INSERT INTO report_exports (id, user_id, status, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.pool.Exec(ctx, query, export.ID, export.UserID, export.Status, export.StartDate, export.EndDate)
	return err
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (models.ReportExport, error) {
	const query = `
		SELECT id, user_id, status, start_date, end_date, object_key, error, created_at, completed_at
		FROM report_exports WHERE id = $1
	`
	var export models.ReportExport
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&export.ID,
		&export.UserID,
		&export.Status,
		&export.StartDate,
		&export.EndDate,
		&export.ObjectKey,
		&export.Error,
		&export.CreatedAt,
		&export.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ReportExport{}, ErrExportNotFound
		}
		return models.ReportExport{}, err
	}
	return export, nil
}

func (r *ReportRepository) MarkCompleted(ctx context.Context, id, objectKey string) error {
	const query = `
		UPDATE report_exports SET status = $2, object_key = $3, error = NULL, completed_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, models.ExportCompleted, objectKey)
}

func (r *ReportRepository) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `
		UPDATE report_exports SET status = $2, error = $3, completed_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, models.ExportFailed, reason)
}

func (r *ReportRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrExportNotFound
	}
	return nil
}
