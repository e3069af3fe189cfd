package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/apperror"
)

// AbortWithError writes err as the JSON error body and stops the chain.
// Internal failures are logged with their cause and answered generically.
func AbortWithError(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	if appErr.Code == apperror.CodeInternal {
		log := RequestLogger(c)
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	tr, locale := translator(c)
	key := appErr.Key
	if appErr.Code == apperror.CodeInternal {
		key = "server_error"
	}

	body := gin.H{}
	for k, v := range appErr.Payload {
		body[k] = v
	}
	body["error"] = tr.T(locale, key)
	body["code"] = appErr.Code
	if len(appErr.Fields) > 0 {
		body["errors"] = tr.Fields(locale, appErr.Fields)
	}

	c.AbortWithStatusJSON(apperror.HTTPStatus(appErr.Code), body)
}
