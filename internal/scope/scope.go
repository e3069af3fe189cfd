// Package scope decides which resource instances a user may see. Permission
// gates decide the verb; the predicate returned here decides the object set,
// and callers apply both.
package scope

import (
	"fmt"

	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
)

type Kind string

const (
	Employees   Kind = "employees"
	Locations   Kind = "locations"
	Attendances Kind = "attendances"
)

type mode int

const (
	modeNone mode = iota
	modeAll
	modeOwner
)

// Predicate is a visibility filter over one resource kind. The zero value
// matches nothing.
type Predicate struct {
	Kind    Kind
	mode    mode
	ownerID int64
}

// For resolves the predicate for authz. Administrators see everything,
// managers see what they own and every other role sees nothing, whatever
// view permissions it holds. Attendance ownership is taken from the
// attendance's employee, never its location.
func For(authz rbac.AuthorizationContext, kind Kind) Predicate {
	switch {
	case authz.IsAdministrator():
		return Predicate{Kind: kind, mode: modeAll}
	case authz.IsManager() && authz.UserID != 0:
		return Predicate{Kind: kind, mode: modeOwner, ownerID: authz.UserID}
	default:
		return Predicate{Kind: kind, mode: modeNone}
	}
}

// Allows is the single-object gate: authz must hold permission and the
// object, owned by ownerID, must fall inside the visibility predicate of kind.
func Allows(authz rbac.AuthorizationContext, kind Kind, permission string, ownerID int64) bool {
	return authz.Can(permission) && For(authz, kind).Match(ownerID)
}

// All returns a predicate that matches every instance.
func All(kind Kind) Predicate {
	return Predicate{Kind: kind, mode: modeAll}
}

// OwnedBy returns a predicate matching instances owned by userID.
func OwnedBy(kind Kind, userID int64) Predicate {
	return Predicate{Kind: kind, mode: modeOwner, ownerID: userID}
}

func (p Predicate) Unrestricted() bool { return p.mode == modeAll }

func (p Predicate) Empty() bool { return p.mode == modeNone }

// Match tests an instance whose owning user id is ownerID.
func (p Predicate) Match(ownerID int64) bool {
	switch p.mode {
	case modeAll:
		return true
	case modeOwner:
		return ownerID == p.ownerID
	default:
		return false
	}
}

func (p Predicate) MatchEmployee(e models.Employee) bool {
	return p.Match(e.UserID)
}

func (p Predicate) MatchLocation(l models.Location) bool {
	return p.Match(l.UserID)
}

// MatchAttendance needs the attendance's employee to resolve ownership.
func (p Predicate) MatchAttendance(a models.Attendance, employee models.Employee) bool {
	if employee.ID != a.EmployeeID {
		return p.mode == modeAll
	}
	return p.Match(employee.UserID)
}

// SQL renders the predicate against ownerColumn, the column holding the
// owning user id, using placeholder $argPos. For attendances ownerColumn must
// be the joined employee's user_id.
func (p Predicate) SQL(ownerColumn string, argPos int) (string, []any) {
	switch p.mode {
	case modeAll:
		return "TRUE", nil
	case modeOwner:
		return fmt.Sprintf("%s = $%d", ownerColumn, argPos), []any{p.ownerID}
	default:
		return "FALSE", nil
	}
}

// Filter keeps the items whose owner, as reported by owner, matches p.
func Filter[T any](p Predicate, items []T, owner func(T) int64) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if p.Match(owner(item)) {
			out = append(out, item)
		}
	}
	return out
}
