package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hayley-d/collaborative-coding-backend/internal/logging"
)

// Logger is a Gin middleware that logs every request with method, path,
// status code, and latency via the request-scoped structured logger.
func Logger(base zerolog.Logger) gin.HandlerFunc {
	reqLog := logging.Request(base)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		reqLog.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Recovery wraps Gin's default recovery but logs panics via the
// error-scoped structured logger.
func Recovery(base zerolog.Logger) gin.HandlerFunc {
	errLog := logging.Error(base)
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				errLog.Error().Interface("panic", err).Msg("panic recovered")
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
