package models

import "time"

type Location struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Address     *string    `json:"address"`
	City        *string    `json:"city"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	Description *string    `json:"description"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`

	AttendancesCount *int64       `json:"attendances_count,omitempty"`
	Attendances      []Attendance `json:"attendances,omitempty"`
}

func (l Location) Trashed() bool {
	return l.DeletedAt != nil
}
