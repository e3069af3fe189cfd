package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/attendance"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/scope"
)

type AttendanceStore interface {
	GetByID(ctx context.Context, id int64) (models.Attendance, error)
	List(ctx context.Context, filter repository.AttendanceFilter) ([]models.Attendance, error)
	Create(ctx context.Context, a models.Attendance) (models.Attendance, error)
	Update(ctx context.Context, id int64, c repository.AttendanceChanges) (models.Attendance, error)
	Delete(ctx context.Context, id int64) error
}

type EmployeeReader interface {
	GetByID(ctx context.Context, id int64, withTrashed bool) (models.Employee, error)
}

// AttendanceService is the user-surface view of attendances: listing within
// scope and manual corrections. Employees go through attendance.Machine.
type AttendanceService struct {
	attendances AttendanceStore
	employees   EmployeeReader
	locations   attendance.LocationReader
	log         zerolog.Logger
}

func NewAttendanceService(attendances AttendanceStore, employees EmployeeReader, locations attendance.LocationReader, log zerolog.Logger) *AttendanceService {
	return &AttendanceService{attendances: attendances, employees: employees, locations: locations, log: log}
}

type AttendanceListInput struct {
	EmployeeID *int64
	LocationID *int64
	StartDate  *time.Time
	EndDate    *time.Time
}

// AttendanceInput carries the writable fields. On update nil fields keep
// their stored value.
type AttendanceInput struct {
	EmployeeID        *int64
	LocationID        *int64
	CheckIn           *time.Time
	CheckOut          *time.Time
	CheckInLatitude   *float64
	CheckInLongitude  *float64
	CheckOutLatitude  *float64
	CheckOutLongitude *float64
	Notes             *string
}

func (s *AttendanceService) List(ctx context.Context, authz rbac.AuthorizationContext, in AttendanceListInput) ([]models.Attendance, error) {
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, apperror.Validation("end_date", "validation.after_or_equal")
	}
	list, err := s.attendances.List(ctx, repository.AttendanceFilter{
		Scope:      scope.For(authz, scope.Attendances),
		EmployeeID: in.EmployeeID,
		LocationID: in.LocationID,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
	})
	if err != nil {
		return nil, internalError(err)
	}
	return list, nil
}

func (s *AttendanceService) Get(ctx context.Context, authz rbac.AuthorizationContext, id int64) (models.Attendance, error) {
	return s.authorized(ctx, authz, id, rbac.ViewAttendances)
}

func (s *AttendanceService) Create(ctx context.Context, authz rbac.AuthorizationContext, in AttendanceInput) (models.Attendance, error) {
	fields := fieldErrors{}
	if in.EmployeeID == nil {
		fields.add("employee_id", "validation.required")
	}
	if in.LocationID == nil {
		fields.add("location_id", "validation.required")
	}
	if in.CheckIn == nil {
		fields.add("check_in", "validation.required")
	}
	validateAttendanceInput(fields, in)
	if in.CheckIn != nil && in.CheckOut != nil && !in.CheckOut.After(*in.CheckIn) {
		fields.add("check_out", "validation.after")
	}
	if err := fields.err(); err != nil {
		return models.Attendance{}, err
	}

	if err := s.gateReferences(ctx, authz, in.EmployeeID, in.LocationID); err != nil {
		return models.Attendance{}, err
	}

	created, err := s.attendances.Create(ctx, models.Attendance{
		EmployeeID:        *in.EmployeeID,
		LocationID:        *in.LocationID,
		CheckIn:           in.CheckIn.UTC(),
		CheckOut:          utcPtr(in.CheckOut),
		CheckInLatitude:   models.RoundCoordinatePtr(in.CheckInLatitude),
		CheckInLongitude:  models.RoundCoordinatePtr(in.CheckInLongitude),
		CheckOutLatitude:  models.RoundCoordinatePtr(in.CheckOutLatitude),
		CheckOutLongitude: models.RoundCoordinatePtr(in.CheckOutLongitude),
		Notes:             in.Notes,
	})
	if err != nil {
		return models.Attendance{}, attendanceWriteError(err)
	}
	s.log.Info().Int64("attendance_id", created.ID).Int64("user_id", authz.UserID).Msg("attendance recorded")
	return created, nil
}

func (s *AttendanceService) Update(ctx context.Context, authz rbac.AuthorizationContext, id int64, in AttendanceInput) (models.Attendance, error) {
	current, err := s.authorized(ctx, authz, id, rbac.EditAttendances)
	if err != nil {
		return models.Attendance{}, err
	}

	fields := fieldErrors{}
	validateAttendanceInput(fields, in)
	checkIn := current.CheckIn
	if in.CheckIn != nil {
		checkIn = *in.CheckIn
	}
	checkOut := current.CheckOut
	if in.CheckOut != nil {
		checkOut = in.CheckOut
	}
	if checkOut != nil && !checkOut.After(checkIn) {
		fields.add("check_out", "validation.after")
	}
	if err := fields.err(); err != nil {
		return models.Attendance{}, err
	}

	if err := s.gateReferences(ctx, authz, in.EmployeeID, in.LocationID); err != nil {
		return models.Attendance{}, err
	}

	updated, err := s.attendances.Update(ctx, id, repository.AttendanceChanges{
		EmployeeID:        in.EmployeeID,
		LocationID:        in.LocationID,
		CheckIn:           utcPtr(in.CheckIn),
		CheckOut:          utcPtr(in.CheckOut),
		CheckInLatitude:   models.RoundCoordinatePtr(in.CheckInLatitude),
		CheckInLongitude:  models.RoundCoordinatePtr(in.CheckInLongitude),
		CheckOutLatitude:  models.RoundCoordinatePtr(in.CheckOutLatitude),
		CheckOutLongitude: models.RoundCoordinatePtr(in.CheckOutLongitude),
		Notes:             in.Notes,
	})
	if err != nil {
		return models.Attendance{}, attendanceWriteError(err)
	}
	return updated, nil
}

func (s *AttendanceService) Delete(ctx context.Context, authz rbac.AuthorizationContext, id int64) error {
	if _, err := s.authorized(ctx, authz, id, rbac.DeleteAttendances); err != nil {
		return err
	}
	if err := s.attendances.Delete(ctx, id); err != nil {
		return attendanceWriteError(err)
	}
	return nil
}

// gateReferences checks that every referenced employee and location is
// live and owned by the acting user.
func (s *AttendanceService) gateReferences(ctx context.Context, authz rbac.AuthorizationContext, employeeID, locationID *int64) error {
	if employeeID != nil {
		employee, err := s.employees.GetByID(ctx, *employeeID, false)
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			return apperror.Validation("employee_id", "validation.exists")
		}
		if err != nil {
			return internalError(err)
		}
		if employee.UserID != authz.UserID {
			return apperror.ErrForbidden
		}
	}
	if locationID != nil {
		location, err := s.locations.GetByID(ctx, *locationID, false)
		if errors.Is(err, repository.ErrLocationNotFound) {
			return apperror.Validation("location_id", "validation.exists")
		}
		if err != nil {
			return internalError(err)
		}
		if location.UserID != authz.UserID {
			return apperror.ErrForbidden
		}
	}
	return nil
}

func (s *AttendanceService) authorized(ctx context.Context, authz rbac.AuthorizationContext, id int64, permission string) (models.Attendance, error) {
	a, err := s.attendances.GetByID(ctx, id)
	if errors.Is(err, repository.ErrAttendanceNotFound) {
		return models.Attendance{}, apperror.NotFound("attendance.not_found")
	}
	if err != nil {
		return models.Attendance{}, internalError(err)
	}
	var owner int64
	if a.Employee != nil {
		owner = a.Employee.UserID
	}
	if !scope.Allows(authz, scope.Attendances, permission, owner) {
		return models.Attendance{}, apperror.ErrForbidden
	}
	return a, nil
}

func validateAttendanceInput(fields fieldErrors, in AttendanceInput) {
	checkLat := func(name string, v *float64) {
		if v != nil && !models.ValidLatitude(*v) {
			fields.add(name, "validation.between")
		}
	}
	checkLon := func(name string, v *float64) {
		if v != nil && !models.ValidLongitude(*v) {
			fields.add(name, "validation.between")
		}
	}
	checkLat("check_in_latitude", in.CheckInLatitude)
	checkLon("check_in_longitude", in.CheckInLongitude)
	checkLat("check_out_latitude", in.CheckOutLatitude)
	checkLon("check_out_longitude", in.CheckOutLongitude)
	if in.Notes != nil && len([]rune(*in.Notes)) > attendance.MaxNotesLength {
		fields.add("notes", "validation.max")
	}
}

func attendanceWriteError(err error) error {
	var conflict *repository.OpenAttendanceError
	switch {
	case errors.As(err, &conflict):
		return apperror.AlreadyCheckedIn(conflict.Open)
	case errors.Is(err, repository.ErrAttendanceOpen):
		return apperror.New(apperror.CodeAlreadyCheckedIn, "attendance.already_checked_in")
	case errors.Is(err, repository.ErrInvalidTimeRange):
		return apperror.Validation("check_out", "validation.after")
	case errors.Is(err, repository.ErrInvalidReference):
		return apperror.Validation("employee_id", "validation.exists")
	case errors.Is(err, repository.ErrAttendanceNotFound):
		return apperror.NotFound("attendance.not_found")
	}
	return internalError(err)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
