package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/config"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/security"
)

var testSecurity = config.SecurityConfig{
	JWTAccessSecret: "test-secret",
	AccessTTL:       time.Hour,
	RefreshTTL:      24 * time.Hour,
	PersonalTTL:     30 * 24 * time.Hour,
}

type authFixture struct {
	svc       *AuthService
	users     *memoryUsers
	employees *memoryEmployees
	tokens    *memoryTokens
	roles     *recordingRoles
	now       time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	hash, err := security.HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	f := &authFixture{
		users: newMemoryUsers(models.User{ID: 1, Name: "Maria", Email: "maria@example.com", PasswordHash: hash}),
		employees: newMemoryEmployees(
			models.Employee{ID: 7, UserID: 1, Email: "ana@example.com", EmployeeCode: "E-100", IsActive: true, PasswordHash: hash},
			models.Employee{ID: 8, UserID: 1, Email: "luis@example.com", EmployeeCode: "E-101", IsActive: true, ForcePasswordChange: true},
		),
		tokens: newMemoryTokens(),
		roles:  &recordingRoles{},
		now:    time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewAuthService(f.users, f.employees, f.tokens, f.roles, testSecurity, zerolog.Nop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestRegisterAssignsDefaultRole(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	result, err := f.svc.Register(ctx, RegisterInput{Name: " Pedro ", Email: "pedro@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.Principal.User.Name != "Pedro" {
		t.Fatalf("expected trimmed name, got %q", result.Principal.User.Name)
	}
	if f.roles.assigned[result.Principal.ID()] != rbac.DefaultRole {
		t.Fatalf("expected default role, got %v", f.roles.assigned)
	}
	if result.Token.RefreshToken == "" || result.Token.TokenType != TokenType {
		t.Fatalf("unexpected token %+v", result.Token)
	}

	_, err = f.svc.Register(ctx, RegisterInput{Name: "Again", Email: "pedro@example.com", Password: "secret123"})
	if errorCode(err) != apperror.CodeValidation || len(fieldKeys(err, "email")) == 0 {
		t.Fatalf("expected email uniqueness failure, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		kind       models.PrincipalKind
		identifier string
		password   *string
		wantErr    bool
		wantForce  bool
	}{
		{"user", models.PrincipalUser, "maria@example.com", ptr("secret123"), false, false},
		{"user wrong password", models.PrincipalUser, "maria@example.com", ptr("secret124"), true, false},
		{"user missing password", models.PrincipalUser, "maria@example.com", nil, true, false},
		{"unknown user", models.PrincipalUser, "nobody@example.com", ptr("secret123"), true, false},
		{"employee by code", models.PrincipalEmployee, "E-100", ptr("secret123"), false, false},
		{"employee by email", models.PrincipalEmployee, "ana@example.com", ptr("secret123"), false, false},
		{"employee email in user space", models.PrincipalUser, "ana@example.com", ptr("secret123"), true, false},
		{"forced change skips password", models.PrincipalEmployee, "E-101", nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.svc.Login(ctx, tt.kind, tt.identifier, tt.password)
			if tt.wantErr {
				if errorCode(err) != apperror.CodeInvalidCredentials {
					t.Fatalf("expected invalid credentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			if result.ForcePasswordChange != tt.wantForce {
				t.Fatalf("expected force=%v, got %v", tt.wantForce, result.ForcePasswordChange)
			}
			if result.Principal.Kind != tt.kind {
				t.Fatalf("expected %s principal, got %s", tt.kind, result.Principal.Kind)
			}
		})
	}
}

func TestAuthenticateIsolatesCredentialSpaces(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	result, err := f.svc.Login(ctx, models.PrincipalEmployee, "E-100", ptr("secret123"))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	bearer := result.Token.AccessToken

	principal, err := f.svc.Authenticate(ctx, models.PrincipalEmployee, bearer)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.ID() != 7 || principal.TokenID == "" {
		t.Fatalf("unexpected principal %+v", principal)
	}

	if _, err := f.svc.Authenticate(ctx, models.PrincipalUser, bearer); errorCode(err) != apperror.CodeUnauthenticated {
		t.Fatalf("employee token accepted on user surface: %v", err)
	}

	if err := f.svc.Logout(ctx, principal); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, models.PrincipalEmployee, bearer); errorCode(err) != apperror.CodeUnauthenticated {
		t.Fatalf("revoked token accepted: %v", err)
	}
}

func TestLogoutRevokesOnlyCurrentToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	first, _ := f.svc.Login(ctx, models.PrincipalUser, "maria@example.com", ptr("secret123"))
	second, _ := f.svc.Login(ctx, models.PrincipalUser, "maria@example.com", ptr("secret123"))

	principal, err := f.svc.Authenticate(ctx, models.PrincipalUser, first.Token.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := f.svc.Logout(ctx, principal); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, models.PrincipalUser, second.Token.AccessToken); err != nil {
		t.Fatalf("second session must survive: %v", err)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	result, _ := f.svc.Login(ctx, models.PrincipalUser, "maria@example.com", ptr("secret123"))

	// the service clock, not the wall clock, decides expiry
	f.now = f.now.Add(testSecurity.AccessTTL - time.Minute)
	if _, err := f.svc.Authenticate(ctx, models.PrincipalUser, result.Token.AccessToken); err != nil {
		t.Fatalf("token inside its ttl rejected: %v", err)
	}

	f.now = f.now.Add(2 * time.Minute)

	if _, err := f.svc.Authenticate(ctx, models.PrincipalUser, result.Token.AccessToken); errorCode(err) != apperror.CodeUnauthenticated {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestUpdatePasswordWrongCurrentKeepsHash(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	employee, _ := f.employees.GetByID(ctx, 7, false)
	before := employee.PasswordHash

	err := f.svc.UpdatePassword(ctx, models.EmployeePrincipal(employee, "tok"), UpdatePasswordInput{
		CurrentPassword: ptr("not-it-at-all"),
		NewPassword:     "brand-new-pass",
	})
	if errorCode(err) != apperror.CodeValidation || len(fieldKeys(err, "current_password")) == 0 {
		t.Fatalf("expected current_password failure, got %v", err)
	}

	after, _ := f.employees.GetByID(ctx, 7, false)
	if !bytes.Equal(before, after.PasswordHash) {
		t.Fatal("stored hash changed after a rejected update")
	}
}

func TestUpdatePasswordForcedChangeClearsFlag(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	employee, _ := f.employees.GetByID(ctx, 8, false)
	if err := f.svc.UpdatePassword(ctx, models.EmployeePrincipal(employee, "tok"), UpdatePasswordInput{NewPassword: "brand-new-pass"}); err != nil {
		t.Fatalf("update password: %v", err)
	}

	updated, _ := f.employees.GetByID(ctx, 8, false)
	if updated.ForcePasswordChange {
		t.Fatal("expected force flag cleared")
	}
	ok, err := security.VerifyPassword("brand-new-pass", updated.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("new password does not verify: %v", err)
	}

	if _, err := f.svc.Login(ctx, models.PrincipalEmployee, "E-101", nil); errorCode(err) != apperror.CodeInvalidCredentials {
		t.Fatalf("password-less login must stop working, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	login, _ := f.svc.Login(ctx, models.PrincipalUser, "maria@example.com", ptr("secret123"))

	refreshed, err := f.svc.Refresh(ctx, models.PrincipalUser, RefreshInput{RefreshToken: login.Token.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Token.RefreshToken == login.Token.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if f.tokens.live() != 1 {
		t.Fatalf("expected exactly one live token, got %d", f.tokens.live())
	}

	if _, err := f.svc.Refresh(ctx, models.PrincipalUser, RefreshInput{RefreshToken: login.Token.RefreshToken}); errorCode(err) != apperror.CodeUnauthenticated {
		t.Fatalf("consumed refresh token reused: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, models.PrincipalUser, login.Token.AccessToken); errorCode(err) != apperror.CodeUnauthenticated {
		t.Fatalf("old access token still valid: %v", err)
	}
}

func TestRefreshWithBearer(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	login, _ := f.svc.Login(ctx, models.PrincipalEmployee, "E-100", ptr("secret123"))
	principal, err := f.svc.Authenticate(ctx, models.PrincipalEmployee, login.Token.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	other, _ := f.svc.Login(ctx, models.PrincipalEmployee, "E-100", ptr("secret123"))
	if _, err := f.svc.Refresh(ctx, models.PrincipalEmployee, RefreshInput{Principal: &principal, RefreshToken: other.Token.RefreshToken}); errorCode(err) != apperror.CodeUnauthenticated {
		t.Fatalf("refresh token of another session accepted: %v", err)
	}

	// past the refresh window the bearer alone still rotates
	f.now = f.now.Add(testSecurity.RefreshTTL + time.Hour)
	if _, err := f.svc.Refresh(ctx, models.PrincipalEmployee, RefreshInput{Principal: &principal}); err != nil {
		t.Fatalf("refresh with bearer: %v", err)
	}
}

func TestRefreshRejectsExpiredRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	login, _ := f.svc.Login(ctx, models.PrincipalUser, "maria@example.com", ptr("secret123"))
	f.now = f.now.Add(testSecurity.RefreshTTL + time.Minute)

	if _, err := f.svc.Refresh(ctx, models.PrincipalUser, RefreshInput{RefreshToken: login.Token.RefreshToken}); errorCode(err) != apperror.CodeUnauthenticated {
		t.Fatalf("expired refresh token accepted: %v", err)
	}
}

func TestRefreshLosingRevokeRace(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	login, _ := f.svc.Login(ctx, models.PrincipalUser, "maria@example.com", ptr("secret123"))
	f.tokens.revokeErr = repository.ErrTokenNotFound

	if _, err := f.svc.Refresh(ctx, models.PrincipalUser, RefreshInput{RefreshToken: login.Token.RefreshToken}); errorCode(err) != apperror.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated after lost race, got %v", err)
	}
	if f.tokens.live() != 1 {
		t.Fatalf("no token may be issued after a lost race, got %d live", f.tokens.live())
	}
}

func TestRefreshWithoutCredentials(t *testing.T) {
	f := newAuthFixture(t)

	if _, err := f.svc.Refresh(context.Background(), models.PrincipalUser, RefreshInput{}); errorCode(err) != apperror.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestPersonalTokenHasNoRefresh(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, _ := f.users.GetByID(ctx, 1)
	token, err := f.svc.CreatePersonalToken(ctx, models.UserPrincipal(user, "tok"), "ci")
	if err != nil {
		t.Fatalf("personal token: %v", err)
	}
	if token.RefreshToken != "" {
		t.Fatal("personal tokens must not carry a refresh token")
	}
	if !token.ExpiresAt.Equal(f.now.Add(testSecurity.PersonalTTL)) {
		t.Fatalf("unexpected expiry %s", token.ExpiresAt)
	}

	employee, _ := f.employees.GetByID(ctx, 7, false)
	if _, err := f.svc.CreatePersonalToken(ctx, models.EmployeePrincipal(employee, "tok"), "ci"); errorCode(err) != apperror.CodeForbidden {
		t.Fatalf("employees must not mint personal tokens, got %v", err)
	}
}
