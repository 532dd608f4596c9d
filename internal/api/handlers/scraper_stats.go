package handlers

import (
	"net/http"
	"time"

	"channel-scout/internal/scraper/workers"

	"github.com/labstack/echo/v4"
)

// ScraperStatsHandler returns browser session pool occupancy and per-domain
// navigation counters
func ScraperStatsHandler(pool *workers.SessionPool, limiter *workers.DomainLimiter) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := map[string]interface{}{
			"success":    true,
			"request_id": requestID(c),
			"timestamp":  time.Now(),
		}
		if pool != nil {
			resp["sessions"] = pool.Stats()
		}
		if limiter != nil {
			resp["domains"] = limiter.Stats()
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// DomainStatsHandler returns the counters of one domain
func DomainStatsHandler(limiter *workers.DomainLimiter) echo.HandlerFunc {
	return func(c echo.Context) error {
		domain := c.Param("domain")
		if limiter == nil {
			return errorJSON(c, http.StatusNotFound, "domain_not_found", "No statistics for "+domain, requestID(c))
		}

		stats, ok := limiter.Stats()[domain]
		if !ok {
			return errorJSON(c, http.StatusNotFound, "domain_not_found", "No statistics for "+domain, requestID(c))
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"domain":     domain,
			"stats":      stats,
			"request_id": requestID(c),
		})
	}
}
