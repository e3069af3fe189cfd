// Package attendance implements the per-employee check-in/check-out state
// machine. An employee is either closed (no open attendance) or open (exactly
// one attendance without a check-out).
package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/models"
	"qrattendance/internal/repository"
	"qrattendance/internal/scope"
)

const MaxNotesLength = 1000

// Store persists attendances. CheckIn must be atomic with respect to other
// CheckIn calls for the same employee and report a conflict as
// *repository.OpenAttendanceError; CheckOut must report
// repository.ErrNoOpenAttendance without writing anything.
type Store interface {
	CheckIn(ctx context.Context, p repository.CheckInParams) (models.Attendance, error)
	CheckOut(ctx context.Context, p repository.CheckOutParams) (models.Attendance, error)
	FindOpen(ctx context.Context, employeeID int64) (models.Attendance, error)
	List(ctx context.Context, filter repository.AttendanceFilter) ([]models.Attendance, error)
}

type LocationReader interface {
	GetByID(ctx context.Context, id int64, withTrashed bool) (models.Location, error)
}

type Machine struct {
	store     Store
	locations LocationReader
	now       func() time.Time
	log       zerolog.Logger
}

func NewMachine(store Store, locations LocationReader, log zerolog.Logger) *Machine {
	return &Machine{
		store:     store,
		locations: locations,
		now:       time.Now,
		log:       log,
	}
}

// WithClock replaces the time source; used by tests.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

type CheckInInput struct {
	LocationID int64
	Latitude   *float64
	Longitude  *float64
	Notes      *string
}

type CheckOutInput struct {
	Latitude  *float64
	Longitude *float64
	Notes     *string
}

// CheckIn opens a new attendance for the employee at location.
func (m *Machine) CheckIn(ctx context.Context, employee models.Employee, in CheckInInput) (models.Attendance, error) {
	fields := map[string][]string{}
	validateCoordinates(fields, "latitude", "longitude", in.Latitude, in.Longitude)
	validateNotes(fields, in.Notes)
	if in.LocationID <= 0 {
		fields["location_id"] = append(fields["location_id"], "validation.required")
	}
	if len(fields) > 0 {
		return models.Attendance{}, apperror.ValidationFields(fields)
	}

	location, err := m.locations.GetByID(ctx, in.LocationID, false)
	if errors.Is(err, repository.ErrLocationNotFound) {
		return models.Attendance{}, apperror.Validation("location_id", "validation.exists")
	}
	if err != nil {
		return models.Attendance{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	attendance, err := m.store.CheckIn(ctx, repository.CheckInParams{
		EmployeeID: employee.ID,
		LocationID: location.ID,
		At:         m.now().UTC(),
		Latitude:   models.RoundCoordinatePtr(in.Latitude),
		Longitude:  models.RoundCoordinatePtr(in.Longitude),
		Notes:      normalizeNotes(in.Notes),
	})
	if err != nil {
		var conflict *repository.OpenAttendanceError
		switch {
		case errors.As(err, &conflict):
			return models.Attendance{}, apperror.AlreadyCheckedIn(conflict.Open)
		case errors.Is(err, repository.ErrAttendanceOpen):
			return models.Attendance{}, apperror.New(apperror.CodeAlreadyCheckedIn, "attendance.already_checked_in")
		case errors.Is(err, repository.ErrEmployeeNotFound):
			return models.Attendance{}, apperror.ErrUnauthenticated
		}
		return models.Attendance{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	m.log.Info().
		Int64("employee_id", employee.ID).
		Int64("location_id", location.ID).
		Int64("attendance_id", attendance.ID).
		Msg("employee checked in")
	return attendance, nil
}

// CheckOut closes the employee's latest open attendance. New notes replace
// the stored ones only when provided.
func (m *Machine) CheckOut(ctx context.Context, employee models.Employee, in CheckOutInput) (models.Attendance, error) {
	fields := map[string][]string{}
	validateCoordinates(fields, "latitude", "longitude", in.Latitude, in.Longitude)
	validateNotes(fields, in.Notes)
	if len(fields) > 0 {
		return models.Attendance{}, apperror.ValidationFields(fields)
	}

	attendance, err := m.store.CheckOut(ctx, repository.CheckOutParams{
		EmployeeID: employee.ID,
		At:         m.now().UTC(),
		Latitude:   models.RoundCoordinatePtr(in.Latitude),
		Longitude:  models.RoundCoordinatePtr(in.Longitude),
		Notes:      normalizeNotes(in.Notes),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNoOpenAttendance) {
			return models.Attendance{}, apperror.ErrNoOpenAttendance
		}
		return models.Attendance{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	m.log.Info().
		Int64("employee_id", employee.ID).
		Int64("attendance_id", attendance.ID).
		Msg("employee checked out")
	return attendance, nil
}

// Current returns the open attendance, or nil when the employee is closed.
func (m *Machine) Current(ctx context.Context, employee models.Employee) (*models.Attendance, error) {
	open, err := m.store.FindOpen(ctx, employee.ID)
	if errors.Is(err, repository.ErrNoOpenAttendance) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}
	return &open, nil
}

type HistoryFilter struct {
	LocationID *int64
	StartDate  *time.Time
	EndDate    *time.Time
}

// History lists the employee's own attendances newest first.
func (m *Machine) History(ctx context.Context, employee models.Employee, f HistoryFilter) ([]models.Attendance, error) {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, apperror.Validation("end_date", "validation.after_or_equal")
	}
	employeeID := employee.ID
	list, err := m.store.List(ctx, repository.AttendanceFilter{
		// the employee filter already confines rows to the caller
		Scope:      scope.All(scope.Attendances),
		EmployeeID: &employeeID,
		LocationID: f.LocationID,
		StartDate:  f.StartDate,
		EndDate:    f.EndDate,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}
	for i := range list {
		list[i].Employee = nil
	}
	return list, nil
}

func validateCoordinates(fields map[string][]string, latField, lonField string, lat, lon *float64) {
	switch {
	case lat == nil:
		fields[latField] = append(fields[latField], "validation.required")
	case !models.ValidLatitude(*lat):
		fields[latField] = append(fields[latField], "validation.between")
	}
	switch {
	case lon == nil:
		fields[lonField] = append(fields[lonField], "validation.required")
	case !models.ValidLongitude(*lon):
		fields[lonField] = append(fields[lonField], "validation.between")
	}
}

func validateNotes(fields map[string][]string, notes *string) {
	if notes != nil && len([]rune(*notes)) > MaxNotesLength {
		fields["notes"] = append(fields["notes"], "validation.max")
	}
}

// normalizeNotes treats blank notes as absent.
func normalizeNotes(notes *string) *string {
	if notes == nil || strings.TrimSpace(*notes) == "" {
		return nil
	}
	return notes
}
