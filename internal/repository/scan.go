package repository

import (
	"qrattendance/internal/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `u.id, u.name, u.email, u.password_hash, u.force_password_change, u.created_at, u.updated_at, u.deleted_at`

func userDest(u *models.User) []any {
	return []any{&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ForcePasswordChange, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt}
}

const employeeColumns = `e.id, e.user_id, e.first_name, e.last_name, e.email, e.employee_code, e.phone, e.hire_date,
	e.position, e.notes, e.is_active, e.password_hash, e.force_password_change, e.created_at, e.updated_at, e.deleted_at`

func employeeDest(e *models.Employee) []any {
	return []any{
		&e.ID, &e.UserID, &e.FirstName, &e.LastName, &e.Email, &e.EmployeeCode, &e.Phone, &e.HireDate,
		&e.Position, &e.Notes, &e.IsActive, &e.PasswordHash, &e.ForcePasswordChange, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt,
	}
}

const locationColumns = `l.id, l.user_id, l.name, l.address, l.city, l.latitude::float8, l.longitude::float8,
	l.description, l.is_active, l.created_at, l.updated_at, l.deleted_at`

func locationDest(l *models.Location) []any {
	return []any{
		&l.ID, &l.UserID, &l.Name, &l.Address, &l.City, &l.Latitude, &l.Longitude,
		&l.Description, &l.IsActive, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	}
}

const attendanceColumns = `a.id, a.employee_id, a.location_id, a.check_in, a.check_out,
	a.check_in_latitude::float8, a.check_in_longitude::float8, a.check_out_latitude::float8, a.check_out_longitude::float8,
	a.notes, a.created_at, a.updated_at`

func attendanceDest(a *models.Attendance) []any {
	return []any{
		&a.ID, &a.EmployeeID, &a.LocationID, &a.CheckIn, &a.CheckOut,
		&a.CheckInLatitude, &a.CheckInLongitude, &a.CheckOutLatitude, &a.CheckOutLongitude,
		&a.Notes, &a.CreatedAt, &a.UpdatedAt,
	}
}

func concat(parts ...[]any) []any {
	var out []any
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// args accumulates positional query parameters.
type args []any

func (a *args) add(v any) int {
	*a = append(*a, v)
	return len(*a)
}
