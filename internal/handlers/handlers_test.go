package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/attendance"
	"qrattendance/internal/config"
	"qrattendance/internal/i18n"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
	"qrattendance/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAuth accepts "user-token" and "employee-token" bearers. Methods a
// test does not override panic through the nil embedded interface.
type fakeAuth struct {
	AuthAPI
	login func(kind models.PrincipalKind, identifier string, password *string) (service.AuthResult, error)
}

func (f *fakeAuth) Authenticate(_ context.Context, kind models.PrincipalKind, bearer string) (models.Principal, error) {
	switch {
	case bearer == "user-token" && kind == models.PrincipalUser:
		return models.UserPrincipal(models.User{ID: 3, Name: "Maria"}, "tok-user"), nil
	case bearer == "employee-token" && kind == models.PrincipalEmployee:
		return models.EmployeePrincipal(models.Employee{ID: 7, UserID: 3, IsActive: true}, "tok-employee"), nil
	}
	return models.Principal{}, apperror.ErrUnauthenticated
}

func (f *fakeAuth) Login(_ context.Context, kind models.PrincipalKind, identifier string, password *string) (service.AuthResult, error) {
	return f.login(kind, identifier, password)
}

type fakeAuthz struct {
	role string
}

func (f fakeAuthz) Resolve(_ context.Context, user models.User) (rbac.AuthorizationContext, error) {
	return rbac.NewAuthorizationContext(user.ID, rbac.Membership{
		Roles:       []string{f.role},
		Permissions: rbac.RolePermissions[f.role],
	}), nil
}

type fakeCheckIns struct {
	CheckInAPI
	checkIn func(employee models.Employee, in attendance.CheckInInput) (models.Attendance, error)
	current *models.Attendance
}

func (f *fakeCheckIns) CheckIn(_ context.Context, employee models.Employee, in attendance.CheckInInput) (models.Attendance, error) {
	return f.checkIn(employee, in)
}

func (f *fakeCheckIns) Current(context.Context, models.Employee) (*models.Attendance, error) {
	return f.current, nil
}

type fakeRoles struct {
	RoleAPI
	assigned map[int64]string
}

func (f *fakeRoles) Roles(context.Context) ([]models.Role, error) {
	return []models.Role{{ID: 1, Name: models.RoleAdministrator}}, nil
}

func (f *fakeRoles) AssignRole(_ context.Context, userID int64, role string) (service.UserMembership, error) {
	if role == "owner" {
		return service.UserMembership{}, apperror.NotFound("role.not_found")
	}
	f.assigned[userID] = role
	return service.UserMembership{User: models.User{ID: userID}, Roles: []string{role}}, nil
}

type fakeLocations struct {
	LocationAPI
	err error
}

func (f *fakeLocations) Get(_ context.Context, _ rbac.AuthorizationContext, id int64) (models.Location, error) {
	if f.err != nil {
		return models.Location{}, f.err
	}
	return models.Location{ID: id, Name: "Warehouse"}, nil
}

func newTestRouter(services Services) *gin.Engine {
	if services.Auth == nil {
		services.Auth = &fakeAuth{}
	}
	if services.Authz == nil {
		services.Authz = fakeAuthz{role: models.RoleManager}
	}
	services.Translator = i18n.NewTranslator(i18n.English, []string{i18n.English, i18n.Spanish})

	h := newHandlerSet(zerolog.Nop(), &config.AppConfig{Environment: "test"}, services)
	r := gin.New()
	h.Register(r.Group("/api"))
	return r
}

func perform(r http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestLoginReturnsTokenPair(t *testing.T) {
	auth := &fakeAuth{login: func(kind models.PrincipalKind, identifier string, password *string) (service.AuthResult, error) {
		if kind != models.PrincipalEmployee || identifier != "E-100" || password == nil {
			t.Fatalf("unexpected login call %s %s %v", kind, identifier, password)
		}
		return service.AuthResult{
			Principal:           models.EmployeePrincipal(models.Employee{ID: 7}, "tok"),
			Token:               service.IssuedToken{AccessToken: "access", RefreshToken: "refresh", TokenType: service.TokenType, ExpiresIn: 60},
			ForcePasswordChange: true,
		}, nil
	}}
	r := newTestRouter(Services{Auth: auth})

	w := perform(r, http.MethodPost, "/api/employees/auth/login", "", map[string]string{"username": "E-100", "password": "secret123"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["access_token"] != "access" || body["refresh_token"] != "refresh" || body["token_type"] != "Bearer" {
		t.Fatalf("unexpected token fields %v", body)
	}
	if body["force_password_change"] != true {
		t.Fatalf("expected force_password_change, got %v", body["force_password_change"])
	}
	if _, ok := body["employee"]; !ok {
		t.Fatalf("expected employee in body, got %v", body)
	}
	if body["message"] != "Login successful." {
		t.Fatalf("unexpected message %v", body["message"])
	}
}

func TestLoginInvalidCredentialsLocalized(t *testing.T) {
	auth := &fakeAuth{login: func(models.PrincipalKind, string, *string) (service.AuthResult, error) {
		return service.AuthResult{}, apperror.ErrInvalidCredentials
	}}
	r := newTestRouter(Services{Auth: auth})

	req := httptest.NewRequest(http.MethodPost, "/api/users/auth/login", bytes.NewBufferString(`{"username":"a@b.c","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "es")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "Las credenciales proporcionadas son incorrectas." {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestRegisterRequiresMatchingConfirmation(t *testing.T) {
	r := newTestRouter(Services{})

	w := perform(r, http.MethodPost, "/api/users/auth/register", "", map[string]string{
		"name":                  "Maria",
		"email":                 "maria@example.com",
		"password":              "secret123",
		"password_confirmation": "secret124",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	fields, _ := decodeBody(t, w)["errors"].(map[string]any)
	if _, ok := fields["password"]; !ok {
		t.Fatalf("expected password error, got %v", fields)
	}
}

func TestCheckInConflictCarriesOpenAttendance(t *testing.T) {
	checkIns := &fakeCheckIns{checkIn: func(employee models.Employee, in attendance.CheckInInput) (models.Attendance, error) {
		if employee.ID != 7 || in.LocationID != 4 {
			t.Fatalf("unexpected check-in %d at %d", employee.ID, in.LocationID)
		}
		return models.Attendance{}, apperror.AlreadyCheckedIn(models.Attendance{ID: 41, EmployeeID: 7, LocationID: 4})
	}}
	r := newTestRouter(Services{CheckIns: checkIns})

	w := perform(r, http.MethodPost, "/api/employees/attendances/check-in", "employee-token", map[string]any{
		"location_id": 4,
		"latitude":    40.4168,
		"longitude":   -3.7038,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["code"] != string(apperror.CodeAlreadyCheckedIn) {
		t.Fatalf("unexpected code %v", body["code"])
	}
	open, ok := body["attendance"].(map[string]any)
	if !ok || open["id"] != float64(41) {
		t.Fatalf("expected open attendance in body, got %v", body["attendance"])
	}
}

func TestCheckInValidatesCoordinates(t *testing.T) {
	checkIns := &fakeCheckIns{checkIn: func(models.Employee, attendance.CheckInInput) (models.Attendance, error) {
		t.Fatal("check-in must not be reached")
		return models.Attendance{}, nil
	}}
	r := newTestRouter(Services{CheckIns: checkIns})

	w := perform(r, http.MethodPost, "/api/employees/attendances/check-in", "employee-token", map[string]any{
		"location_id": 4,
		"latitude":    91,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	fields, _ := decodeBody(t, w)["errors"].(map[string]any)
	if _, ok := fields["latitude"]; !ok {
		t.Fatalf("expected latitude error, got %v", fields)
	}
	if _, ok := fields["longitude"]; !ok {
		t.Fatalf("expected longitude error, got %v", fields)
	}
}

func TestCheckInCreated(t *testing.T) {
	checkIns := &fakeCheckIns{checkIn: func(employee models.Employee, in attendance.CheckInInput) (models.Attendance, error) {
		return models.Attendance{ID: 42, EmployeeID: employee.ID, LocationID: in.LocationID}, nil
	}}
	r := newTestRouter(Services{CheckIns: checkIns})

	w := perform(r, http.MethodPost, "/api/employees/attendances/check-in", "employee-token", map[string]any{
		"location_id": 4,
		"latitude":    40.4168,
		"longitude":   -3.7038,
		"notes":       "front door",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["id"] != float64(42) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCurrentAttendanceEmptyState(t *testing.T) {
	r := newTestRouter(Services{CheckIns: &fakeCheckIns{}})

	w := perform(r, http.MethodGet, "/api/employees/attendances/current", "employee-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	v, ok := body["attendance"]
	if !ok || v != nil {
		t.Fatalf("expected explicit null attendance, got %v", body)
	}
}

func TestEmployeeTokenRejectedOnUserSurface(t *testing.T) {
	r := newTestRouter(Services{Locations: &fakeLocations{}})

	w := perform(r, http.MethodGet, "/api/users/locations/4", "employee-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRoleAdministrationRequiresAdministrator(t *testing.T) {
	roles := &fakeRoles{assigned: map[int64]string{}}

	tests := []struct {
		name string
		role string
		want int
	}{
		{"administrator", models.RoleAdministrator, http.StatusOK},
		{"manager", models.RoleManager, http.StatusForbidden},
		{"supervisor", models.RoleSupervisor, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(Services{Authz: fakeAuthz{role: tt.role}, Roles: roles})
			w := perform(r, http.MethodGet, "/api/users/roles", "user-token", nil)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAssignRole(t *testing.T) {
	roles := &fakeRoles{assigned: map[int64]string{}}
	r := newTestRouter(Services{Authz: fakeAuthz{role: models.RoleAdministrator}, Roles: roles})

	w := perform(r, http.MethodPost, "/api/users/manage/12/assign-role", "user-token", map[string]string{"role": models.RoleManager})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if roles.assigned[12] != models.RoleManager {
		t.Fatalf("role not assigned: %v", roles.assigned)
	}
	body := decodeBody(t, w)
	if body["message"] != "Role assigned successfully." {
		t.Fatalf("unexpected message %v", body["message"])
	}
	if _, ok := body["user"].(map[string]any); !ok {
		t.Fatalf("expected user in body, got %v", body)
	}

	w = perform(r, http.MethodPost, "/api/users/manage/12/assign-role", "user-token", map[string]string{"role": "owner"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown role, got %d", w.Code)
	}
}

func TestShowLocationMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"found", "/api/users/locations/4", nil, http.StatusOK},
		{"malformed id", "/api/users/locations/abc", nil, http.StatusNotFound},
		{"foreign owner", "/api/users/locations/4", apperror.ErrForbidden, http.StatusForbidden},
		{"storage failure", "/api/users/locations/4", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(Services{Locations: &fakeLocations{err: tt.err}})
			w := perform(r, http.MethodGet, tt.path, "user-token", nil)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestSupervisorCannotDeleteLocation(t *testing.T) {
	r := newTestRouter(Services{Authz: fakeAuthz{role: models.RoleSupervisor}, Locations: &fakeLocations{}})

	w := perform(r, http.MethodDelete, "/api/users/locations/4", "user-token", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(Services{Checks: map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("down") },
	}})

	w := perform(r, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	checks, _ := decodeBody(t, w)["checks"].(map[string]any)
	if checks["database"] != "ok" {
		t.Fatalf("unexpected checks %v", checks)
	}
}
