package middleware

import (
	"strconv"
	"time"

	"channel-scout/internal/metrics"

	"github.com/labstack/echo/v4"
)

// Metrics records request latency per route template
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(route, c.Request().Method, strconv.Itoa(status), time.Since(start))
			return err
		}
	}
}
