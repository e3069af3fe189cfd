package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/apperror"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
)

type Authorizer interface {
	Resolve(ctx context.Context, user models.User) (rbac.AuthorizationContext, error)
}

// Authorize resolves the user's roles and permissions once for the request.
// It must run after Auth on the user surface.
func Authorize(authz Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			AbortWithError(c, apperror.ErrUnauthenticated)
			return
		}

		resolved, err := authz.Resolve(c.Request.Context(), user)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(authzKey, resolved)
		c.Next()
	}
}

// RequirePermission admits requests whose user holds every permission.
func RequirePermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := Authorization(c)
		for _, p := range permissions {
			if !authz.Can(p) {
				AbortWithError(c, apperror.ErrForbidden)
				return
			}
		}
		c.Next()
	}
}

// RequireRole admits requests whose user holds any of the roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := Authorization(c)
		for _, r := range roles {
			if authz.HasRole(r) {
				c.Next()
				return
			}
		}
		AbortWithError(c, apperror.ErrForbidden)
	}
}
