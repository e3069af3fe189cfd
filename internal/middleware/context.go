package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
)

const (
	principalKey  = "principal"
	authzKey      = "authorization"
	loggerKey     = "logger"
	localeKey     = "locale"
	translatorKey = "translator"
)

func SetPrincipal(c *gin.Context, p models.Principal) {
	c.Set(principalKey, p)
}

// CurrentPrincipal returns the authenticated principal, if any.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// CurrentUser returns the authenticated user on the user surface.
func CurrentUser(c *gin.Context) (models.User, bool) {
	p, ok := CurrentPrincipal(c)
	if !ok || p.Kind != models.PrincipalUser || p.User == nil {
		return models.User{}, false
	}
	return *p.User, true
}

// CurrentEmployee returns the authenticated employee on the employee surface.
func CurrentEmployee(c *gin.Context) (models.Employee, bool) {
	p, ok := CurrentPrincipal(c)
	if !ok || p.Kind != models.PrincipalEmployee || p.Employee == nil {
		return models.Employee{}, false
	}
	return *p.Employee, true
}

// Authorization returns the context resolved by Authorize. Without one the
// zero value grants nothing.
func Authorization(c *gin.Context) rbac.AuthorizationContext {
	v, ok := c.Get(authzKey)
	if !ok {
		return rbac.AuthorizationContext{}
	}
	authz, _ := v.(rbac.AuthorizationContext)
	return authz
}

// RequestLogger returns the request-scoped logger set by Logger.
func RequestLogger(c *gin.Context) zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(zerolog.Logger); ok {
			return l
		}
	}
	return zerolog.Nop()
}
