package models

import (
	"encoding/json"
	"math"
	"time"
)

// CoordinateScale matches the numeric(10,7) columns.
const CoordinateScale = 7

type Attendance struct {
	ID                int64      `json:"id"`
	EmployeeID        int64      `json:"employee_id"`
	LocationID        int64      `json:"location_id"`
	CheckIn           time.Time  `json:"check_in"`
	CheckOut          *time.Time `json:"check_out"`
	CheckInLatitude   *float64   `json:"check_in_latitude"`
	CheckInLongitude  *float64   `json:"check_in_longitude"`
	CheckOutLatitude  *float64   `json:"check_out_latitude"`
	CheckOutLongitude *float64   `json:"check_out_longitude"`
	Notes             *string    `json:"notes"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Employee *Employee `json:"employee,omitempty"`
	Location *Location `json:"location,omitempty"`
}

func (a Attendance) IsOpen() bool {
	return a.CheckOut == nil
}

// TotalHours is the exact fractional number of hours worked, nil while the
// attendance is still open.
func (a Attendance) TotalHours() *float64 {
	if a.CheckOut == nil {
		return nil
	}
	hours := a.CheckOut.Sub(a.CheckIn).Hours()
	return &hours
}

func (a Attendance) MarshalJSON() ([]byte, error) {
	type plain Attendance
	return json.Marshal(struct {
		plain
		TotalHours *float64 `json:"total_hours"`
	}{
		plain:      plain(a),
		TotalHours: a.TotalHours(),
	})
}

// RoundCoordinate rounds to the stored precision.
func RoundCoordinate(v float64) float64 {
	p := math.Pow10(CoordinateScale)
	return math.Round(v*p) / p
}

func RoundCoordinatePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := RoundCoordinate(*v)
	return &r
}

func ValidLatitude(v float64) bool {
	return !math.IsNaN(v) && v >= -90 && v <= 90
}

func ValidLongitude(v float64) bool {
	return !math.IsNaN(v) && v >= -180 && v <= 180
}
