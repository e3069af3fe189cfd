package service

import (
	"errors"

	"qrattendance/internal/apperror"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/scope"
)

func internalError(err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Wrap(apperror.CodeInternal, "server_error", err)
}

func duplicateField(err error) (string, bool) {
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		return dup.Field, true
	}
	return "", false
}

// visibility resolves the list predicate, widening to trashed rows only for
// administrators.
func visibility(authz rbac.AuthorizationContext, kind scope.Kind, withTrashed bool) (scope.Predicate, bool) {
	return scope.For(authz, kind), withTrashed && authz.IsAdministrator()
}

// fieldErrors collects validation failures keyed by request field.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, key string) {
	f[field] = append(f[field], key)
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperror.ValidationFields(f)
}
