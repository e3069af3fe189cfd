package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/ids"
	"qrattendance/internal/models"
	"qrattendance/internal/queue"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/scope"
)

type SummaryStore interface {
	Summary(ctx context.Context, filter repository.SummaryFilter) ([]models.AttendanceSummary, error)
}

type ExportStore interface {
	Create(ctx context.Context, export models.ReportExport) error
	GetByID(ctx context.Context, id string) (models.ReportExport, error)
	MarkFailed(ctx context.Context, id, reason string) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) (string, error)
}

type Presigner interface {
	PresignReport(ctx context.Context, objectKey, filename string) (string, error)
}

type ReportService struct {
	summaries SummaryStore
	exports   ExportStore
	jobs      Enqueuer
	presigner Presigner
	log       zerolog.Logger
	now       func() time.Time
}

func NewReportService(summaries SummaryStore, exports ExportStore, jobs Enqueuer, presigner Presigner, log zerolog.Logger) *ReportService {
	return &ReportService{
		summaries: summaries,
		exports:   exports,
		jobs:      jobs,
		presigner: presigner,
		log:       log,
		now:       time.Now,
	}
}

type DateRange struct {
	StartDate *time.Time
	EndDate   *time.Time
}

func (r DateRange) validate() error {
	fields := fieldErrors{}
	if r.StartDate == nil {
		fields.add("start_date", "validation.required")
	}
	if r.EndDate == nil {
		fields.add("end_date", "validation.required")
	}
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		fields.add("end_date", "validation.after_or_equal")
	}
	return fields.err()
}

// Summary totals closed hours per visible employee over the range.
func (s *ReportService) Summary(ctx context.Context, authz rbac.AuthorizationContext, r DateRange) ([]models.AttendanceSummary, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	rows, err := s.summaries.Summary(ctx, repository.SummaryFilter{
		Scope:     scope.For(authz, scope.Attendances),
		StartDate: *r.StartDate,
		EndDate:   *r.EndDate,
	})
	if err != nil {
		return nil, internalError(err)
	}
	return rows, nil
}

// RequestExport records a pending export and hands it to the worker. The
// worker resolves the requester's scope again when it runs.
func (s *ReportService) RequestExport(ctx context.Context, authz rbac.AuthorizationContext, r DateRange) (models.ReportExport, error) {
	if err := r.validate(); err != nil {
		return models.ReportExport{}, err
	}

	export := models.ReportExport{
		ID:        ids.New(),
		UserID:    authz.UserID,
		Status:    models.ExportPending,
		StartDate: *r.StartDate,
		EndDate:   *r.EndDate,
		CreatedAt: s.now().UTC(),
	}
	if err := s.exports.Create(ctx, export); err != nil {
		return models.ReportExport{}, internalError(err)
	}

	if _, err := s.jobs.Enqueue(ctx, queue.ReportExportJob(export.ID)); err != nil {
		if markErr := s.exports.MarkFailed(ctx, export.ID, "enqueue failed"); markErr != nil {
			s.log.Error().Err(markErr).Str("export_id", export.ID).Msg("mark export failed")
		}
		return models.ReportExport{}, internalError(err)
	}

	s.log.Info().Str("export_id", export.ID).Int64("user_id", authz.UserID).Msg("report export queued")
	return export, nil
}

// Export returns an export requested by the caller. Completed exports carry a
// short-lived download URL.
func (s *ReportService) Export(ctx context.Context, authz rbac.AuthorizationContext, id string) (models.ReportExport, error) {
	export, err := s.exports.GetByID(ctx, id)
	if errors.Is(err, repository.ErrExportNotFound) {
		return models.ReportExport{}, apperror.NotFound("report.not_found")
	}
	if err != nil {
		return models.ReportExport{}, internalError(err)
	}
	if !authz.Owns(rbac.ExportReports, export.UserID) {
		return models.ReportExport{}, apperror.ErrForbidden
	}

	if export.Status == models.ExportCompleted && export.ObjectKey != nil {
		url, err := s.presigner.PresignReport(ctx, *export.ObjectKey, "attendance-"+export.ID+".csv")
		if err != nil {
			return models.ReportExport{}, internalError(err)
		}
		export.DownloadURL = url
	}
	return export, nil
}
