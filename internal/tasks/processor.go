package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"qrattendance/internal/models"
	"qrattendance/internal/queue"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/scope"
	"qrattendance/internal/storage"
)

type ExportStore interface {
	GetByID(ctx context.Context, id string) (models.ReportExport, error)
	MarkCompleted(ctx context.Context, id, objectKey string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type UserReader interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

type AuthorizationResolver interface {
	Resolve(ctx context.Context, user models.User) (rbac.AuthorizationContext, error)
}

type AttendanceLister interface {
	List(ctx context.Context, filter repository.AttendanceFilter) ([]models.Attendance, error)
}

type ReportWriter interface {
	PutReport(ctx context.Context, key string, data []byte) error
}

type TokenPruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

type Deps struct {
	Exports     ExportStore
	Users       UserReader
	Authz       AuthorizationResolver
	Attendances AttendanceLister
	Reports     ReportWriter
	Tokens      TokenPruner
}

// Processor runs the jobs the API and the scheduler put on the stream.
type Processor struct {
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time
}

func NewProcessor(deps Deps, logger zerolog.Logger) *Processor {
	return &Processor{
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, job queue.Job) error {
	switch job.Type {
	case queue.TaskReportExport:
		return p.handleExport(ctx, job)
	case queue.TaskTokensPrune:
		return p.handlePrune(ctx)
	default:
		p.logger.Warn().Str("type", job.Type).Msg("unknown task type")
		return nil
	}
}

// handleExport builds the CSV for an export with the requester's current
// visibility. Failures that retrying cannot fix mark the export failed and
// are acknowledged.
func (p *Processor) handleExport(ctx context.Context, job queue.Job) error {
	exportID := job.Value("export_id")
	if exportID == "" {
		p.logger.Warn().Str("message_id", job.ID).Msg("export job without id")
		return nil
	}

	export, err := p.deps.Exports.GetByID(ctx, exportID)
	if errors.Is(err, repository.ErrExportNotFound) {
		p.logger.Warn().Str("export_id", exportID).Msg("export vanished")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load export: %w", err)
	}
	if export.Status != models.ExportPending {
		return nil
	}

	user, err := p.deps.Users.GetByID(ctx, export.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return p.fail(ctx, export.ID, "requester no longer exists")
	}
	if err != nil {
		return fmt.Errorf("load requester: %w", err)
	}

	authz, err := p.deps.Authz.Resolve(ctx, user)
	if err != nil {
		return fmt.Errorf("resolve requester: %w", err)
	}
	if !authz.Can(rbac.ExportReports) {
		return p.fail(ctx, export.ID, "requester may no longer export reports")
	}

	start, end := export.StartDate, export.EndDate
	rows, err := p.deps.Attendances.List(ctx, repository.AttendanceFilter{
		Scope:     scope.For(authz, scope.Attendances),
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		return fmt.Errorf("list attendances: %w", err)
	}

	data, err := EncodeAttendanceCSV(rows)
	if err != nil {
		return p.fail(ctx, export.ID, err.Error())
	}

	key := storage.ReportKey(export.UserID, export.ID)
	if err := p.deps.Reports.PutReport(ctx, key, data); err != nil {
		return err
	}
	if err := p.deps.Exports.MarkCompleted(ctx, export.ID, key); err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}

	p.logger.Info().
		Str("export_id", export.ID).
		Int("rows", len(rows)).
		Msg("report export completed")
	return nil
}

func (p *Processor) fail(ctx context.Context, exportID, reason string) error {
	p.logger.Warn().Str("export_id", exportID).Str("reason", reason).Msg("report export failed")
	if err := p.deps.Exports.MarkFailed(ctx, exportID, reason); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

func (p *Processor) handlePrune(ctx context.Context) error {
	n, err := p.deps.Tokens.Prune(ctx, p.now())
	if err != nil {
		return fmt.Errorf("prune tokens: %w", err)
	}
	p.logger.Info().Int64("pruned", n).Msg("access tokens pruned")
	return nil
}
