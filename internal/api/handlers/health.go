package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"channel-scout/internal/logging"
	"channel-scout/pkg/models"

	"github.com/labstack/echo/v4"
)

// Version is reported by the health endpoints
var Version = "1.0.0"

var startTime = time.Now()

// HealthReporter reports whether a long-lived component is usable
type HealthReporter interface {
	IsHealthy() bool
}

// HealthChecks groups the dependencies inspected by readiness and status.
// Nil fields are skipped.
type HealthChecks struct {
	LLM   HealthReporter
	Tasks HealthReporter
	// Pings holds optional backends such as redis and mongo
	Pings        map[string]func(ctx context.Context) error
	PingTimeout  time.Duration
	SessionStats func() map[string]interface{}
}

func (h *HealthChecks) run(ctx context.Context) (map[string]string, bool) {
	checks := map[string]string{"api": "ok"}
	ok := true

	check := func(name string, p HealthReporter) {
		if p == nil {
			return
		}
		if p.IsHealthy() {
			checks[name] = "ok"
			return
		}
		checks[name] = "unhealthy"
		ok = false
	}
	check("llm", h.LLM)
	check("tasks", h.Tasks)

	timeout := h.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	names := make([]string, 0, len(h.Pings))
	for name := range h.Pings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := h.Pings[name](pctx)
		cancel()
		if err != nil {
			checks[name] = "error: " + err.Error()
			ok = false
			continue
		}
		checks[name] = "ok"
	}
	return checks, ok
}

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	logging.GetGlobalLogger().Debug("Health check requested", map[string]interface{}{"request_id": requestID(c)})

	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
		Checks: map[string]string{
			"api": "ok",
		},
	})
}

// ReadinessHandler answers 503 until every configured dependency responds
func ReadinessHandler(h *HealthChecks) echo.HandlerFunc {
	return func(c echo.Context) error {
		checks, ok := h.run(c.Request().Context())

		status, code := "ready", http.StatusOK
		if !ok {
			status, code = "not_ready", http.StatusServiceUnavailable
			logging.GetGlobalLogger().Warn("Readiness check failed", map[string]interface{}{
				"request_id": requestID(c),
				"checks":     checks,
			})
		}

		return c.JSON(code, models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   Version,
			Uptime:    time.Since(startTime),
			Checks:    checks,
		})
	}
}

// LivenessHandler handles liveness check requests
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
	})
}

// StatusHandler provides detailed service status
func StatusHandler(h *HealthChecks) echo.HandlerFunc {
	return func(c echo.Context) error {
		checks, ok := h.run(c.Request().Context())

		status := "operational"
		if !ok {
			status = "degraded"
		}

		resp := map[string]interface{}{
			"status":    status,
			"timestamp": time.Now(),
			"version":   Version,
			"uptime":    time.Since(startTime).String(),
			"checks":    checks,
		}
		if h.SessionStats != nil {
			resp["browser_sessions"] = h.SessionStats()
		}
		return c.JSON(http.StatusOK, resp)
	}
}
