package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"channel-scout/internal/store"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"

	"github.com/labstack/echo/v4"
)

// RunReader reads persisted runs
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*models.RunResult, error)
	RecentRuns(ctx context.Context, query string, limit int64) ([]models.RunResult, error)
}

const maxListedRuns = 100

// RunHandler returns one persisted run. runs may be nil when persistence is off.
func RunHandler(runs RunReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := requestID(c)
		if runs == nil {
			return errorJSON(c, http.StatusServiceUnavailable, "persistence_disabled", "Run persistence is not enabled", requestID)
		}

		run, err := runs.GetRun(c.Request().Context(), c.Param("id"))
		if errors.Is(err, store.ErrRunNotFound) {
			nf := utils.NewNotFoundError("No run with ID " + c.Param("id"))
			return errorJSON(c, nf.Code, "run_not_found", nf.Message, requestID)
		}
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "run_lookup_failed", err.Error(), requestID)
		}
		return c.JSON(http.StatusOK, run)
	}
}

// ListRunsHandler lists recent runs, optionally filtered by ?query=
func ListRunsHandler(runs RunReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := requestID(c)
		if runs == nil {
			return errorJSON(c, http.StatusServiceUnavailable, "persistence_disabled", "Run persistence is not enabled", requestID)
		}

		limit := int64(20)
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n < 1 {
				return errorJSON(c, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", requestID)
			}
			limit = min(n, maxListedRuns)
		}

		list, err := runs.RecentRuns(c.Request().Context(), c.QueryParam("query"), limit)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "run_lookup_failed", err.Error(), requestID)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"runs":  list,
			"count": len(list),
		})
	}
}
