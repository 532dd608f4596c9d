package handlers

import (
	"errors"
	"net/http"

	"channel-scout/internal/background"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"

	"github.com/labstack/echo/v4"
)

// AsyncSearchHandler queues a discovery run and answers 202 with its process ID
func AsyncSearchHandler(svc SearchService, tasks background.TaskManager, logger types.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := requestID(c)
		log := logger.WithField("request_id", requestID)

		req, err := bindSearchRequest(c, requestID, log)
		if req == nil {
			return err
		}

		processID := utils.GenerateRequestID()
		if err := tasks.SubmitSearchTask(c.Request().Context(), processID, svc.NewRequest(req)); err != nil {
			log.WithError(err).Error("Failed to submit search task")
			if errors.Is(err, background.ErrQueueFull) {
				return c.JSON(http.StatusServiceUnavailable,
					models.CreateAsyncErrorResponse("queue_full", "Too many pending runs, retry later", processID))
			}
			return c.JSON(http.StatusInternalServerError,
				models.CreateAsyncErrorResponse("submission_failed", err.Error(), processID))
		}

		log.WithField("process_id", processID).Info("Search task accepted")
		return c.JSON(http.StatusAccepted, models.CreateAsyncSearchResponse(processID))
	}
}

// TaskStatusHandler reports the state of a queued run
func TaskStatusHandler(tasks background.TaskManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		processID := c.Param("id")

		result, err := tasks.GetTaskResult(c.Request().Context(), processID)
		if err != nil {
			if errors.Is(err, background.ErrTaskNotFound) {
				return c.JSON(http.StatusNotFound,
					models.CreateAsyncErrorResponse("task_not_found", "No task with this process ID", processID))
			}
			return c.JSON(http.StatusInternalServerError,
				models.CreateAsyncErrorResponse("task_lookup_failed", err.Error(), processID))
		}
		return c.JSON(http.StatusOK, result.ToResponse())
	}
}
