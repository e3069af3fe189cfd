package tasks

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"qrattendance/internal/models"
)

var csvHeader = []string{
	"attendance_id", "employee_code", "employee_name", "location", "check_in", "check_out",
	"total_hours", "check_in_latitude", "check_in_longitude", "check_out_latitude", "check_out_longitude", "notes",
}

// EncodeAttendanceCSV renders attendances with their employee and location
// names. Times are RFC 3339 in UTC; open attendances leave check_out and
// total_hours empty.
func EncodeAttendanceCSV(rows []models.Attendance) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, a := range rows {
		var code, name, location string
		if a.Employee != nil {
			code, name = a.Employee.EmployeeCode, a.Employee.FullName()
		}
		if a.Location != nil {
			location = a.Location.Name
		}
		record := []string{
			strconv.FormatInt(a.ID, 10),
			code,
			name,
			location,
			a.CheckIn.UTC().Format(time.RFC3339),
			formatTime(a.CheckOut),
			formatFloat(a.TotalHours(), 2),
			formatFloat(a.CheckInLatitude, models.CoordinateScale),
			formatFloat(a.CheckInLongitude, models.CoordinateScale),
			formatFloat(a.CheckOutLatitude, models.CoordinateScale),
			formatFloat(a.CheckOutLongitude, models.CoordinateScale),
			deref(a.Notes),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
