package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"channel-scout/internal/discovery"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// SearchService runs discovery for the HTTP layer
type SearchService interface {
	NewRequest(sr *models.SearchRequest) discovery.Request
	Run(ctx context.Context, req discovery.Request) (*models.RunResult, error)
}

// requestID returns the ID set by the request middleware, or a fresh one
func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok && id != "" {
		return id
	}
	return utils.GenerateRequestID()
}

func errorJSON(c echo.Context, status int, code, message, requestID string) error {
	return c.JSON(status, models.ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now(),
	})
}

// bindSearchRequest parses and validates the body. A non-nil error has
// already been written to the response.
func bindSearchRequest(c echo.Context, requestID string, logger types.Logger) (*models.SearchRequest, error) {
	var req models.SearchRequest
	if err := c.Bind(&req); err != nil {
		logger.WithError(err).Warn("Failed to bind request")
		berr := utils.NewBadRequestError("Invalid request format")
		return nil, errorJSON(c, berr.Code, "invalid_request", berr.Message, requestID)
	}

	if err := validate.Struct(&req); err != nil {
		logger.WithError(err).Warn("Request validation failed")
		verr := utils.NewValidationError(err.Error())
		return nil, errorJSON(c, verr.Code, "validation_failed", verr.Error(), requestID)
	}
	return &req, nil
}

// SearchHandler runs a discovery synchronously and answers with the run
func SearchHandler(svc SearchService, logger types.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		requestID := requestID(c)
		log := logger.WithField("request_id", requestID)

		req, err := bindSearchRequest(c, requestID, log)
		if req == nil {
			return err
		}

		log.Info("Search request received", map[string]interface{}{
			"query": req.Query,
			"limit": req.Limit,
		})

		run, err := svc.Run(c.Request().Context(), svc.NewRequest(req))
		if err != nil {
			if errors.Is(err, discovery.ErrExpansion) {
				log.WithError(err).Error("Query expansion failed")
				expErr := utils.NewExpansionError(err.Error())
				return errorJSON(c, expErr.Code, "expansion_failed", expErr.Error(), requestID)
			}
			log.WithError(err).Error("Search failed")
			ierr := utils.NewInternalServerError("Discovery run failed")
			return errorJSON(c, ierr.Code, "search_failed", ierr.Message, requestID)
		}

		log.Info("Search completed", map[string]interface{}{
			"run_id":    run.RunID,
			"results":   len(run.Results),
			"timed_out": run.TimedOut,
			"duration":  utils.FormatDuration(time.Since(start)),
		})

		return c.JSON(http.StatusOK, models.SearchResponse{
			Success:        true,
			Run:            run,
			Count:          len(run.Results),
			ProcessingTime: time.Since(start),
			RequestID:      requestID,
		})
	}
}
