package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/apperror"
	"qrattendance/internal/config"
	"qrattendance/internal/ratelimit"
)

// KeyFunc derives the counter key of a request.
type KeyFunc func(c *gin.Context) string

// ByIP keys on the client address.
func ByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByPrincipal keys on the authenticated principal, falling back to the
// client address.
func ByPrincipal(c *gin.Context) string {
	if p, ok := CurrentPrincipal(c); ok {
		return string(p.Kind) + ":" + strconv.FormatInt(p.ID(), 10)
	}
	return ByIP(c)
}

// RateLimit applies rule under name. A limiter failure lets the request
// through; limiting is not worth an outage.
func RateLimit(limiter ratelimit.Limiter, name string, rule config.RateLimit, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || rule.Max <= 0 {
			c.Next()
			return
		}

		d, err := limiter.Allow(c.Request.Context(), name+":"+key(c), rule)
		if err != nil {
			log := RequestLogger(c)
			log.Warn().Err(err).Str("limit", name).Msg("rate limiter unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			AbortWithError(c, apperror.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
