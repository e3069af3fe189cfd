package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/apperror"
	"qrattendance/internal/models"
)

type Authenticator interface {
	Authenticate(ctx context.Context, kind models.PrincipalKind, bearer string) (models.Principal, error)
}

// Auth admits only requests carrying a valid token of the given kind. A user
// token presented to the employee surface is rejected and vice versa.
func Auth(auth Authenticator, kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, apperror.ErrUnauthenticated)
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), kind, token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		SetPrincipal(c, principal)
		c.Next()
	}
}

// OptionalAuth sets the principal when a valid token of kind is present and
// otherwise lets the request through unauthenticated.
func OptionalAuth(auth Authenticator, kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			principal, err := auth.Authenticate(c.Request.Context(), kind, token)
			if err == nil {
				SetPrincipal(c, principal)
			} else if apperror.GetCode(err) == apperror.CodeInternal {
				AbortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
