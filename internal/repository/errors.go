package repository

import (
	"errors"
	"fmt"
	"strings"

	"qrattendance/internal/database"
	"qrattendance/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrLocationNotFound   = errors.New("location not found")
	ErrAttendanceNotFound = errors.New("attendance not found")
	ErrTokenNotFound      = errors.New("access token not found")
	ErrExportNotFound     = errors.New("report export not found")

	ErrNoOpenAttendance = errors.New("no open attendance")
	ErrAttendanceOpen   = errors.New("attendance already open")
	ErrInvalidTimeRange = errors.New("check out must be after check in")
	ErrInvalidReference = errors.New("referenced row does not exist")
)

// OpenAttendanceError reports the open attendance that blocked an insert.
type OpenAttendanceError struct {
	Open models.Attendance
}

func (e *OpenAttendanceError) Error() string {
	return fmt.Sprintf("employee %d already has open attendance %d", e.Open.EmployeeID, e.Open.ID)
}

func (e *OpenAttendanceError) Is(target error) bool {
	return target == ErrAttendanceOpen
}

// DuplicateError reports a unique constraint violation on Field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return e.Field + " already taken"
}

// mapWriteError turns constraint violations into repository errors. The
// unique column is recovered from postgres' default <table>_<column>_key
// constraint naming.
func mapWriteError(table string, err error) error {
	if err == nil {
		return nil
	}
	code, constraint := database.PgCode(err)
	switch code {
	case database.UniqueViolation:
		field := strings.TrimSuffix(strings.TrimPrefix(constraint, table+"_"), "_key")
		return &DuplicateError{Field: field}
	case database.ForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrInvalidReference, constraint)
	case database.CheckViolation:
		return ErrInvalidTimeRange
	}
	return err
}
