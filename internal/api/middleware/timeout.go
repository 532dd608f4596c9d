package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// TimeoutConfig returns timeout middleware configuration
func TimeoutConfig(timeout time.Duration) echo.MiddlewareFunc {
	return middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: timeout,
	})
}

// SelectiveTimeoutConfig applies timeout to every route except those whose path
// starts with one of longPrefixes. Synchronous discovery runs carry their own
// run deadline.
func SelectiveTimeoutConfig(timeout time.Duration, longPrefixes ...string) echo.MiddlewareFunc {
	return middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      timeout,
		ErrorMessage: `{"error":"timeout","message":"Request timed out"}`,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			for _, p := range longPrefixes {
				if strings.HasPrefix(path, p) {
					return true
				}
			}
			return false
		},
	})
}
