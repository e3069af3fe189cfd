package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Logger logs every request and hands a request-scoped logger to the rest of
// the chain.
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := log.With().Str("request_id", c.GetString(requestIDHeader)).Logger()
		c.Set(loggerKey, reqLog)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		event := reqLog.Info()
		if status >= 500 {
			event = reqLog.Error()
		} else if status >= 400 {
			event = reqLog.Warn()
		}

		if p, ok := CurrentPrincipal(c); ok {
			event = event.Str("principal", string(p.Kind)).Int64("principal_id", p.ID())
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", latency).
			Msg("http request")
	}
}
