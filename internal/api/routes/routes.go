package routes

import (
	"net/http"

	"channel-scout/internal/api/handlers"
	"channel-scout/internal/api/middleware"
	"channel-scout/internal/background"
	"channel-scout/internal/config"
	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/internal/metrics"
	"channel-scout/internal/scraper/workers"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// Dependencies are the components served over HTTP. Runs, Metrics, Pool and
// Limiter may be nil. A nil Health only checks the task manager.
type Dependencies struct {
	Config  *config.Config
	Search  handlers.SearchService
	Tasks   background.TaskManager
	Runs    handlers.RunReader
	Health  *handlers.HealthChecks
	Metrics *metrics.Metrics
	Pool    *workers.SessionPool
	Limiter *workers.DomainLimiter
	Logger  types.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = logging.GetGlobalLogger()
	}
	health := deps.Health
	if health == nil {
		health = &handlers.HealthChecks{Tasks: deps.Tasks}
	}

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig())
	e.Use(middleware.RequestValidation())
	e.Use(middleware.RequestLogger(deps.Logger))
	e.Use(middleware.Metrics(deps.Metrics))
	e.Use(middleware.SelectiveTimeoutConfig(deps.Config.Server.ReadTimeout, "/api/v1/search"))

	hc := e.Group("/health")
	{
		hc.GET("", handlers.HealthHandler)
		hc.GET("/ready", handlers.ReadinessHandler(health))
		hc.GET("/live", handlers.LivenessHandler)
	}

	e.GET("/status", handlers.StatusHandler(health))

	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	v1 := e.Group("/api/v1")
	{
		v1.POST("/search", handlers.SearchHandler(deps.Search, deps.Logger))
		v1.POST("/search/async", handlers.AsyncSearchHandler(deps.Search, deps.Tasks, deps.Logger))
		v1.GET("/tasks/:id", handlers.TaskStatusHandler(deps.Tasks))

		v1.GET("/runs", handlers.ListRunsHandler(deps.Runs))
		v1.GET("/runs/:id", handlers.RunHandler(deps.Runs))

		scraper := v1.Group("/scraper")
		{
			scraper.GET("/stats", handlers.ScraperStatsHandler(deps.Pool, deps.Limiter))
			scraper.GET("/domains/:domain", handlers.DomainStatsHandler(deps.Limiter))
		}
	}

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "channel-scout",
			"version": handlers.Version,
			"status":  "running",
		})
	})
}
