package models

import (
	"strings"
	"time"
)

type Employee struct {
	ID                  int64      `json:"id"`
	UserID              int64      `json:"user_id"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Email               string     `json:"email"`
	EmployeeCode        string     `json:"employee_code"`
	Phone               *string    `json:"phone"`
	HireDate            *time.Time `json:"hire_date"`
	Position            *string    `json:"position"`
	Notes               *string    `json:"notes"`
	IsActive            bool       `json:"is_active"`
	PasswordHash        []byte     `json:"-"`
	ForcePasswordChange bool       `json:"force_password_change"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`

	Locations   []Location   `json:"locations,omitempty"`
	Attendances []Attendance `json:"attendances,omitempty"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func (e Employee) Trashed() bool {
	return e.DeletedAt != nil
}

// CanLogin reports whether the employee may authenticate at all.
func (e Employee) CanLogin() bool {
	return e.IsActive && !e.Trashed()
}
