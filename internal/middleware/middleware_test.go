package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/apperror"
	"qrattendance/internal/config"
	"qrattendance/internal/i18n"
	"qrattendance/internal/models"
	"qrattendance/internal/ratelimit"
	"qrattendance/internal/rbac"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	kind models.PrincipalKind
}

func (s stubAuthenticator) Authenticate(_ context.Context, kind models.PrincipalKind, bearer string) (models.Principal, error) {
	if bearer != "good" || kind != s.kind {
		return models.Principal{}, apperror.ErrUnauthenticated
	}
	if kind == models.PrincipalEmployee {
		return models.EmployeePrincipal(models.Employee{ID: 7, IsActive: true}, "tok"), nil
	}
	return models.UserPrincipal(models.User{ID: 3}, "tok"), nil
}

type stubAuthorizer struct {
	role string
}

func (s stubAuthorizer) Resolve(_ context.Context, user models.User) (rbac.AuthorizationContext, error) {
	return rbac.NewAuthorizationContext(user.ID, rbac.Membership{
		Roles:       []string{s.role},
		Permissions: rbac.RolePermissions[s.role],
	}), nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestAuthRejectsTokenOfOtherKind(t *testing.T) {
	r := gin.New()
	r.Use(Locale(i18n.NewTranslator(i18n.English, []string{i18n.English, i18n.Spanish})))
	r.GET("/employee", Auth(stubAuthenticator{kind: models.PrincipalUser}, models.PrincipalEmployee), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/employee", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if body := decode(t, w); body["code"] != string(apperror.CodeUnauthenticated) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAuthSetsPrincipal(t *testing.T) {
	r := gin.New()
	r.GET("/me", Auth(stubAuthenticator{kind: models.PrincipalEmployee}, models.PrincipalEmployee), func(c *gin.Context) {
		e, ok := CurrentEmployee(c)
		if !ok {
			t.Error("employee missing from context")
		}
		if _, ok := CurrentUser(c); ok {
			t.Error("employee request must not expose a user")
		}
		c.JSON(http.StatusOK, gin.H{"id": e.ID})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOptionalAuthPassesWithoutToken(t *testing.T) {
	r := gin.New()
	r.POST("/refresh", OptionalAuth(stubAuthenticator{kind: models.PrincipalUser}, models.PrincipalUser), func(c *gin.Context) {
		_, ok := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decode(t, w); body["authenticated"] != false {
		t.Fatalf("expected anonymous request, got %v", body)
	}
}

func TestRequirePermission(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{models.RoleAdministrator, http.StatusOK},
		{models.RoleManager, http.StatusOK},
		{models.RoleSupervisor, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			r := gin.New()
			r.DELETE("/locations/1",
				Auth(stubAuthenticator{kind: models.PrincipalUser}, models.PrincipalUser),
				Authorize(stubAuthorizer{role: tc.role}),
				RequirePermission(rbac.DeleteLocations),
				func(c *gin.Context) { c.Status(http.StatusOK) },
			)

			req := httptest.NewRequest(http.MethodDelete, "/locations/1", nil)
			req.Header.Set("Authorization", "Bearer good")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/roles",
		Auth(stubAuthenticator{kind: models.PrincipalUser}, models.PrincipalUser),
		Authorize(stubAuthorizer{role: models.RoleManager}),
		RequireRole(models.RoleAdministrator),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	rule := config.RateLimit{Max: 1, Window: time.Minute}
	r.POST("/login", RateLimit(ratelimit.NewMemoryLimiter(), "login", rule, ByIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func TestAbortWithErrorLocalizesFields(t *testing.T) {
	r := gin.New()
	r.Use(Locale(i18n.NewTranslator(i18n.English, []string{i18n.English, i18n.Spanish})))
	r.POST("/x", func(c *gin.Context) {
		AbortWithError(c, apperror.Validation("latitude", "validation.required"))
	})

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Accept-Language", "es-MX,es;q=0.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	body := decode(t, w)
	if body["code"] != string(apperror.CodeValidation) {
		t.Fatalf("unexpected code %v", body["code"])
	}
	fields, ok := body["errors"].(map[string]any)
	if !ok {
		t.Fatalf("missing errors field: %v", body)
	}
	msgs := fields["latitude"].([]any)
	if msgs[0] != "El campo latitude es obligatorio." {
		t.Fatalf("unexpected message %v", msgs[0])
	}
}

func TestAbortWithErrorHidesInternalCause(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		AbortWithError(c, context.DeadlineExceeded)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "Internal server error." {
		t.Fatalf("internal cause leaked: %v", body)
	}
}
