package service

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"qrattendance/internal/apperror"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func errorCode(err error) apperror.Code {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func fieldKeys(err error, field string) []string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Fields[field]
	}
	return nil
}

func authzFor(userID int64, role string) rbac.AuthorizationContext {
	return rbac.NewAuthorizationContext(userID, rbac.Membership{
		Roles:       []string{role},
		Permissions: rbac.RolePermissions[role],
	})
}

type memoryUsers struct {
	mu   sync.Mutex
	next int64
	rows map[int64]models.User
}

func newMemoryUsers(users ...models.User) *memoryUsers {
	m := &memoryUsers{rows: map[int64]models.User{}}
	for _, u := range users {
		m.rows[u.ID] = u
		if u.ID > m.next {
			m.next = u.ID
		}
	}
	return m
}

func (m *memoryUsers) Create(_ context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == u.Email {
			return models.User{}, &repository.DuplicateError{Field: "email"}
		}
	}
	m.next++
	u.ID = m.next
	m.rows[u.ID] = u
	return u, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == email && !row.Trashed() {
			return row, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) SetPassword(_ context.Context, id int64, hash []byte, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash, u.ForcePasswordChange = hash, force
	m.rows[id] = u
	return nil
}

type memoryEmployees struct {
	mu        sync.Mutex
	next      int64
	rows      map[int64]models.Employee
	locations map[int64][]int64
}

func newMemoryEmployees(employees ...models.Employee) *memoryEmployees {
	m := &memoryEmployees{rows: map[int64]models.Employee{}, locations: map[int64][]int64{}}
	for _, e := range employees {
		m.rows[e.ID] = e
		if e.ID > m.next {
			m.next = e.ID
		}
	}
	return m
}

func (m *memoryEmployees) FindForLogin(_ context.Context, identifier string) (models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if (row.Email == identifier || row.EmployeeCode == identifier) && row.CanLogin() {
			return row, nil
		}
	}
	return models.Employee{}, repository.ErrEmployeeNotFound
}

func (m *memoryEmployees) GetByID(_ context.Context, id int64, withTrashed bool) (models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || (e.Trashed() && !withTrashed) {
		return models.Employee{}, repository.ErrEmployeeNotFound
	}
	return e, nil
}

func (m *memoryEmployees) SetPassword(_ context.Context, id int64, hash []byte, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return repository.ErrEmployeeNotFound
	}
	e.PasswordHash, e.ForcePasswordChange = hash, force
	m.rows[id] = e
	return nil
}

func (m *memoryEmployees) Create(_ context.Context, e models.Employee) (models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == e.Email {
			return models.Employee{}, &repository.DuplicateError{Field: "email"}
		}
		if row.EmployeeCode == e.EmployeeCode {
			return models.Employee{}, &repository.DuplicateError{Field: "employee_code"}
		}
	}
	m.next++
	e.ID = m.next
	m.rows[e.ID] = e
	return e, nil
}

func (m *memoryEmployees) Update(_ context.Context, e models.Employee) (models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ID]; !ok {
		return models.Employee{}, repository.ErrEmployeeNotFound
	}
	m.rows[e.ID] = e
	return e, nil
}

func (m *memoryEmployees) List(_ context.Context, f repository.EmployeeFilter) ([]models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Employee
	for _, row := range m.rows {
		if f.Scope.Match(row.UserID) && (f.WithTrashed || !row.Trashed()) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memoryEmployees) SoftDelete(context.Context, int64) error { return nil }

func (m *memoryEmployees) AttachLocations(_ context.Context, employeeID int64, locationIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[employeeID] = append(m.locations[employeeID], locationIDs...)
	return nil
}

func (m *memoryEmployees) DetachLocations(context.Context, int64, []int64) error { return nil }

func (m *memoryEmployees) Locations(_ context.Context, employeeID int64) ([]models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Location
	for _, id := range m.locations[employeeID] {
		out = append(out, models.Location{ID: id})
	}
	return out, nil
}

type memoryLocations map[int64]models.Location

func (m memoryLocations) Create(_ context.Context, l models.Location) (models.Location, error) {
	l.ID = int64(len(m) + 1)
	m[l.ID] = l
	return l, nil
}

func (m memoryLocations) Update(_ context.Context, l models.Location) (models.Location, error) {
	m[l.ID] = l
	return l, nil
}

func (m memoryLocations) GetByID(_ context.Context, id int64, withTrashed bool) (models.Location, error) {
	l, ok := m[id]
	if !ok || (l.Trashed() && !withTrashed) {
		return models.Location{}, repository.ErrLocationNotFound
	}
	return l, nil
}

func (m memoryLocations) List(_ context.Context, f repository.LocationFilter) ([]models.Location, error) {
	var out []models.Location
	for _, l := range m {
		if !f.Scope.Match(l.UserID) || l.Trashed() || (f.ActiveOnly && !l.IsActive) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m memoryLocations) SoftDelete(context.Context, int64) error { return nil }

type noAttendances struct{}

func (noAttendances) ListByEmployee(context.Context, int64) ([]models.Attendance, error) {
	return nil, nil
}

func (noAttendances) ListByLocation(context.Context, int64) ([]models.Attendance, error) {
	return nil, nil
}

type memoryTokens struct {
	mu        sync.Mutex
	rows      map[string]models.AccessToken
	revokeErr error
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{rows: map[string]models.AccessToken{}}
}

func (m *memoryTokens) Create(_ context.Context, t models.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[t.ID] = t
	return nil
}

func (m *memoryTokens) GetByID(_ context.Context, id string) (models.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return models.AccessToken{}, repository.ErrTokenNotFound
	}
	return t, nil
}

func (m *memoryTokens) FindByRefreshHash(_ context.Context, kind models.PrincipalKind, hash []byte) (models.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if t.PrincipalKind == kind && !t.Revoked && bytes.Equal(t.RefreshTokenHash, hash) {
			return t, nil
		}
	}
	return models.AccessToken{}, repository.ErrTokenNotFound
}

func (m *memoryTokens) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revokeErr != nil {
		return m.revokeErr
	}
	t, ok := m.rows[id]
	if !ok || t.Revoked {
		return repository.ErrTokenNotFound
	}
	t.Revoked = true
	m.rows[id] = t
	return nil
}

func (m *memoryTokens) Touch(context.Context, string) error { return nil }

func (m *memoryTokens) live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.rows {
		if !t.Revoked {
			n++
		}
	}
	return n
}

type recordingRoles struct {
	assigned map[int64]string
}

func (r *recordingRoles) AssignRole(_ context.Context, userID int64, role, _ string) error {
	if r.assigned == nil {
		r.assigned = map[int64]string{}
	}
	r.assigned[userID] = role
	return nil
}
