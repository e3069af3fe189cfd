package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "validation_failed"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeUnauthenticated    Code = "unauthenticated"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeAlreadyCheckedIn   Code = "already_checked_in"
	CodeNoOpenAttendance   Code = "no_open_attendance"
	CodeConflict           Code = "conflict"
	CodeTooManyRequests    Code = "too_many_requests"
	CodeInternal           Code = "internal"
)

// Error is a domain failure that carries a stable code, a message key for
// localization and an optional structured payload.
type Error struct {
	Code    Code
	Key     string
	Fields  map[string][]string
	Payload map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Code) + ": " + e.Key + ": " + e.cause.Error()
	}
	return string(e.Code) + ": " + e.Key
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(code Code, key string) *Error {
	return &Error{Code: code, Key: key}
}

func Wrap(code Code, key string, cause error) *Error {
	return &Error{Code: code, Key: key, cause: cause}
}

// WithPayload returns a copy of e carrying an extra response field.
func (e *Error) WithPayload(name string, value any) *Error {
	out := *e
	out.Payload = make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		out.Payload[k] = v
	}
	out.Payload[name] = value
	return &out
}

// Validation builds a validation failure for a single field.
func Validation(field, messageKey string) *Error {
	return &Error{
		Code:   CodeValidation,
		Key:    "validation_failed",
		Fields: map[string][]string{field: {messageKey}},
	}
}

func ValidationFields(fields map[string][]string) *Error {
	return &Error{Code: CodeValidation, Key: "validation_failed", Fields: fields}
}

var (
	ErrInvalidCredentials = New(CodeInvalidCredentials, "login.invalid_credentials")
	ErrUnauthenticated    = New(CodeUnauthenticated, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrNotFound           = New(CodeNotFound, "not_found")
	ErrNoOpenAttendance   = New(CodeNoOpenAttendance, "attendance.no_open_attendance")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too_many_requests")
)

func AlreadyCheckedIn(open any) *Error {
	return New(CodeAlreadyCheckedIn, "attendance.already_checked_in").WithPayload("attendance", open)
}

func NotFound(key string) *Error {
	return New(CodeNotFound, key)
}

func GetCode(err error) Code {
	if err == nil {
		return ""
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

func Is(err error, code Code) bool {
	return GetCode(err) == code
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeAlreadyCheckedIn, CodeNoOpenAttendance:
		return http.StatusUnprocessableEntity
	case CodeInvalidCredentials, CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
