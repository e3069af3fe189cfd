package models

import "time"

type PrincipalKind string

const (
	PrincipalUser     PrincipalKind = "user"
	PrincipalEmployee PrincipalKind = "employee"
)

func (k PrincipalKind) Valid() bool {
	return k == PrincipalUser || k == PrincipalEmployee
}

// AccessToken is the persisted half of an issued credential pair. The bearer
// JWT references it by ID so revocation is a single row update.
type AccessToken struct {
	ID               string
	PrincipalKind    PrincipalKind
	PrincipalID      int64
	Name             string
	RefreshTokenHash []byte
	Revoked          bool
	ExpiresAt        time.Time
	RefreshExpiresAt *time.Time
	CreatedAt        time.Time
	LastUsedAt       *time.Time
}

func (t AccessToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

func (t AccessToken) Refreshable(now time.Time) bool {
	return !t.Revoked && t.RefreshExpiresAt != nil && now.Before(*t.RefreshExpiresAt)
}

// Principal is the authenticated actor of a request. Exactly one of User and
// Employee is set, according to Kind.
type Principal struct {
	Kind     PrincipalKind
	User     *User
	Employee *Employee
	TokenID  string
}

func UserPrincipal(u User, tokenID string) Principal {
	return Principal{Kind: PrincipalUser, User: &u, TokenID: tokenID}
}

func EmployeePrincipal(e Employee, tokenID string) Principal {
	return Principal{Kind: PrincipalEmployee, Employee: &e, TokenID: tokenID}
}

func (p Principal) ID() int64 {
	switch p.Kind {
	case PrincipalUser:
		if p.User != nil {
			return p.User.ID
		}
	case PrincipalEmployee:
		if p.Employee != nil {
			return p.Employee.ID
		}
	}
	return 0
}

func (p Principal) PasswordHash() []byte {
	if p.Kind == PrincipalEmployee && p.Employee != nil {
		return p.Employee.PasswordHash
	}
	if p.User != nil {
		return p.User.PasswordHash
	}
	return nil
}

func (p Principal) ForcePasswordChange() bool {
	if p.Kind == PrincipalEmployee && p.Employee != nil {
		return p.Employee.ForcePasswordChange
	}
	if p.User != nil {
		return p.User.ForcePasswordChange
	}
	return false
}
