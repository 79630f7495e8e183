package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one access-log line per request. 5xx log as
// error and 4xx as warn so stage-trigger conflicts stand out from
// normal traffic.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
			"request_id", GetRequestID(c),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			attrs = append(attrs, "query", q)
		}

		logFor(status)("request completed", attrs...)
	}
}

func logFor(status int) func(msg string, args ...any) {
	switch {
	case status >= 500:
		return slog.Error
	case status >= 400:
		return slog.Warn
	default:
		return slog.Info
	}
}
