package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ErrorResponse represents a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
