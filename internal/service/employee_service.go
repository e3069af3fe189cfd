package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/scope"
	"qrattendance/internal/security"
)

type EmployeeStore interface {
	Create(ctx context.Context, e models.Employee) (models.Employee, error)
	Update(ctx context.Context, e models.Employee) (models.Employee, error)
	GetByID(ctx context.Context, id int64, withTrashed bool) (models.Employee, error)
	List(ctx context.Context, filter repository.EmployeeFilter) ([]models.Employee, error)
	SoftDelete(ctx context.Context, id int64) error
	SetPassword(ctx context.Context, id int64, hash []byte, force bool) error
	AttachLocations(ctx context.Context, employeeID int64, locationIDs []int64) error
	DetachLocations(ctx context.Context, employeeID int64, locationIDs []int64) error
	Locations(ctx context.Context, employeeID int64) ([]models.Location, error)
}

type EmployeeAttendances interface {
	ListByEmployee(ctx context.Context, employeeID int64) ([]models.Attendance, error)
}

type EmployeeService struct {
	employees   EmployeeStore
	locations   LocationStore
	attendances EmployeeAttendances
	log         zerolog.Logger
}

func NewEmployeeService(employees EmployeeStore, locations LocationStore, attendances EmployeeAttendances, log zerolog.Logger) *EmployeeService {
	return &EmployeeService{employees: employees, locations: locations, attendances: attendances, log: log}
}

type EmployeeListInput struct {
	Search      string
	IsActive    *bool
	WithTrashed bool
}

// EmployeeInput carries the writable fields. On update nil fields keep their
// stored value.
type EmployeeInput struct {
	FirstName    *string
	LastName     *string
	Email        *string
	EmployeeCode *string
	Phone        *string
	Password     *string
	HireDate     *time.Time
	Position     *string
	Notes        *string
	IsActive     *bool
}

func (s *EmployeeService) List(ctx context.Context, authz rbac.AuthorizationContext, in EmployeeListInput) ([]models.Employee, error) {
	pred, trashed := visibility(authz, scope.Employees, in.WithTrashed)
	list, err := s.employees.List(ctx, repository.EmployeeFilter{
		Scope:       pred,
		Search:      in.Search,
		IsActive:    in.IsActive,
		WithTrashed: trashed,
	})
	if err != nil {
		return nil, internalError(err)
	}
	return list, nil
}

// Get returns the employee with attendances and assigned locations.
func (s *EmployeeService) Get(ctx context.Context, authz rbac.AuthorizationContext, id int64) (models.Employee, error) {
	employee, err := s.authorized(ctx, authz, id, rbac.ViewEmployees)
	if err != nil {
		return models.Employee{}, err
	}
	return s.withRelations(ctx, employee)
}

// Create stores an employee owned by the acting user. Without a password the
// employee must set one on first login.
func (s *EmployeeService) Create(ctx context.Context, authz rbac.AuthorizationContext, in EmployeeInput) (models.Employee, error) {
	fields := fieldErrors{}
	for name, v := range map[string]*string{
		"first_name":    in.FirstName,
		"last_name":     in.LastName,
		"email":         in.Email,
		"employee_code": in.EmployeeCode,
	} {
		if v == nil || strings.TrimSpace(*v) == "" {
			fields.add(name, "validation.required")
		}
	}
	if err := fields.err(); err != nil {
		return models.Employee{}, err
	}

	employee := models.Employee{UserID: authz.UserID, IsActive: true}
	applyEmployeeInput(&employee, in)

	if in.Password != nil && *in.Password != "" {
		hash, err := hashNewPassword(*in.Password)
		if err != nil {
			return models.Employee{}, err
		}
		employee.PasswordHash = hash
	} else {
		employee.ForcePasswordChange = true
	}

	created, err := s.employees.Create(ctx, employee)
	if err != nil {
		if field, ok := duplicateField(err); ok {
			return models.Employee{}, apperror.Validation(field, "validation.unique")
		}
		return models.Employee{}, internalError(err)
	}
	s.log.Info().Int64("employee_id", created.ID).Int64("user_id", authz.UserID).Msg("employee created")
	return created, nil
}

func (s *EmployeeService) Update(ctx context.Context, authz rbac.AuthorizationContext, id int64, in EmployeeInput) (models.Employee, error) {
	employee, err := s.authorized(ctx, authz, id, rbac.EditEmployees)
	if err != nil {
		return models.Employee{}, err
	}

	fields := fieldErrors{}
	for name, v := range map[string]*string{
		"first_name":    in.FirstName,
		"last_name":     in.LastName,
		"email":         in.Email,
		"employee_code": in.EmployeeCode,
	} {
		if v != nil && strings.TrimSpace(*v) == "" {
			fields.add(name, "validation.required")
		}
	}
	if err := fields.err(); err != nil {
		return models.Employee{}, err
	}

	var hash []byte
	if in.Password != nil && *in.Password != "" {
		if hash, err = hashNewPassword(*in.Password); err != nil {
			return models.Employee{}, err
		}
	}

	applyEmployeeInput(&employee, in)
	updated, err := s.employees.Update(ctx, employee)
	if err != nil {
		if field, ok := duplicateField(err); ok {
			return models.Employee{}, apperror.Validation(field, "validation.unique")
		}
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			return models.Employee{}, apperror.NotFound("employee.not_found")
		}
		return models.Employee{}, internalError(err)
	}

	if hash != nil {
		if err := s.employees.SetPassword(ctx, updated.ID, hash, false); err != nil {
			return models.Employee{}, internalError(err)
		}
		updated.ForcePasswordChange = false
	}
	return updated, nil
}

func (s *EmployeeService) Delete(ctx context.Context, authz rbac.AuthorizationContext, id int64) error {
	if _, err := s.authorized(ctx, authz, id, rbac.DeleteEmployees); err != nil {
		return err
	}
	if err := s.employees.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			return apperror.NotFound("employee.not_found")
		}
		return internalError(err)
	}
	return nil
}

// ResetPassword clears the employee's password and flags a forced change.
func (s *EmployeeService) ResetPassword(ctx context.Context, authz rbac.AuthorizationContext, id int64) (models.Employee, error) {
	employee, err := s.authorized(ctx, authz, id, rbac.EditEmployees)
	if err != nil {
		return models.Employee{}, err
	}
	if err := s.employees.SetPassword(ctx, employee.ID, nil, true); err != nil {
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			return models.Employee{}, apperror.NotFound("employee.not_found")
		}
		return models.Employee{}, internalError(err)
	}
	employee.PasswordHash = nil
	employee.ForcePasswordChange = true

	s.log.Info().Int64("employee_id", employee.ID).Int64("user_id", authz.UserID).Msg("employee password reset")
	return employee, nil
}

// AssignLocations adds location assignments, keeping the existing ones. Every
// location must belong to the acting user.
func (s *EmployeeService) AssignLocations(ctx context.Context, authz rbac.AuthorizationContext, id int64, locationIDs []int64) (models.Employee, error) {
	employee, err := s.authorized(ctx, authz, id, rbac.EditEmployees)
	if err != nil {
		return models.Employee{}, err
	}
	if err := s.gateLocations(ctx, authz, locationIDs); err != nil {
		return models.Employee{}, err
	}
	if err := s.employees.AttachLocations(ctx, employee.ID, dedupe(locationIDs)); err != nil {
		return models.Employee{}, internalError(err)
	}
	return s.withLocations(ctx, employee)
}

func (s *EmployeeService) DetachLocations(ctx context.Context, authz rbac.AuthorizationContext, id int64, locationIDs []int64) (models.Employee, error) {
	employee, err := s.authorized(ctx, authz, id, rbac.EditEmployees)
	if err != nil {
		return models.Employee{}, err
	}
	if len(locationIDs) == 0 {
		return models.Employee{}, apperror.Validation("location_ids", "validation.required")
	}
	if err := s.employees.DetachLocations(ctx, employee.ID, dedupe(locationIDs)); err != nil {
		return models.Employee{}, internalError(err)
	}
	return s.withLocations(ctx, employee)
}

// AvailableLocations lists the active locations of the employee's owner.
func (s *EmployeeService) AvailableLocations(ctx context.Context, employee models.Employee) ([]models.Location, error) {
	list, err := s.locations.List(ctx, repository.LocationFilter{
		Scope:      scope.OwnedBy(scope.Locations, employee.UserID),
		ActiveOnly: true,
	})
	if err != nil {
		return nil, internalError(err)
	}
	for i := range list {
		list[i].AttendancesCount = nil
	}
	return list, nil
}

func (s *EmployeeService) gateLocations(ctx context.Context, authz rbac.AuthorizationContext, locationIDs []int64) error {
	if len(locationIDs) == 0 {
		return apperror.Validation("location_ids", "validation.required")
	}
	for _, locationID := range locationIDs {
		location, err := s.locations.GetByID(ctx, locationID, false)
		if errors.Is(err, repository.ErrLocationNotFound) {
			return apperror.Validation("location_ids", "validation.exists")
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

func (s *EmployeeService) authorized(ctx context.Context, authz rbac.AuthorizationContext, id int64, permission string) (models.Employee, error) {
	employee, err := s.employees.GetByID(ctx, id, false)
	if errors.Is(err, repository.ErrEmployeeNotFound) {
		return models.Employee{}, apperror.NotFound("employee.not_found")
	}
	if err != nil {
		return models.Employee{}, internalError(err)
	}
	if !scope.Allows(authz, scope.Employees, permission, employee.UserID) {
		return models.Employee{}, apperror.ErrForbidden
	}
	return employee, nil
}

func (s *EmployeeService) withRelations(ctx context.Context, employee models.Employee) (models.Employee, error) {
	employee, err := s.withLocations(ctx, employee)
	if err != nil {
		return models.Employee{}, err
	}
	attendances, err := s.attendances.ListByEmployee(ctx, employee.ID)
	if err != nil {
		return models.Employee{}, internalError(err)
	}
	employee.Attendances = attendances
	return employee, nil
}

func (s *EmployeeService) withLocations(ctx context.Context, employee models.Employee) (models.Employee, error) {
	locations, err := s.employees.Locations(ctx, employee.ID)
	if err != nil {
		return models.Employee{}, internalError(err)
	}
	employee.Locations = locations
	return employee, nil
}

func applyEmployeeInput(e *models.Employee, in EmployeeInput) {
	if in.FirstName != nil {
		e.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		e.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		e.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.EmployeeCode != nil {
		e.EmployeeCode = strings.TrimSpace(*in.EmployeeCode)
	}
	if in.Phone != nil {
		e.Phone = in.Phone
	}
	if in.HireDate != nil {
		e.HireDate = in.HireDate
	}
	if in.Position != nil {
		e.Position = in.Position
	}
	if in.Notes != nil {
		e.Notes = in.Notes
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
}

func hashNewPassword(password string) ([]byte, error) {
	if len(password) < MinPasswordLength {
		return nil, apperror.Validation("password", "validation.min")
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, internalError(err)
	}
	return hash, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
