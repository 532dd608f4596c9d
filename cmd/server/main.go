package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-scout/internal/api/handlers"
	"channel-scout/internal/api/routes"
	"channel-scout/internal/background"
	"channel-scout/internal/cache"
	"channel-scout/internal/config"
	"channel-scout/internal/discovery"
	"channel-scout/internal/llm"
	"channel-scout/internal/logging"
	"channel-scout/internal/metrics"
	"channel-scout/internal/scraper"
	"channel-scout/internal/scraper/workers"
	"channel-scout/internal/store"
	"channel-scout/internal/youtube"

	"github.com/labstack/echo/v4"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting channel-scout")

	ctx := context.Background()

	yt, err := youtube.New(ctx, youtube.Options{
		APIKey:            cfg.YouTube.APIKey,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		PageSize:          cfg.YouTube.PageSize,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create YouTube client")
	}

	llmManager := llm.NewManager(cfg, logger)
	if err := llmManager.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start LLM manager")
	}

	pool := workers.NewSessionPool(cfg.BrowserPool.MaxSessions, cfg.BrowserPool.AcquisitionTimeout)
	limiter := workers.NewDomainLimiter(cfg.Scraper.DomainRateLimit, logger)
	m := metrics.New(func() float64 { return float64(pool.Active()) })

	health := &handlers.HealthChecks{
		LLM:          llmManager,
		Pings:        map[string]func(context.Context) error{},
		SessionStats: pool.Stats,
	}

	orchOpts := []discovery.Option{discovery.WithMetrics(m)}

	var taskStore background.TaskStore
	var redisClient *cache.Client
	if cfg.Redis.Enabled {
		redisClient = cache.New(cfg, logger)
		if err := redisClient.Ping(ctx); err != nil {
			logger.WithError(err).Warn("Redis unreachable, contact cache and task store disabled")
			_ = redisClient.Close()
			redisClient = nil
		} else {
			orchOpts = append(orchOpts, discovery.WithContactCache(redisClient))
			taskStore = cache.NewTaskStore(redisClient, cfg.BackgroundTasks.MaxTaskAge)
			health.Pings["redis"] = redisClient.Ping
		}
	}

	var runs handlers.RunReader
	var mongoClient *store.Client
	if cfg.Mongo.Enabled {
		mongoClient, err = store.New(ctx, cfg, logger)
		if err != nil {
			logger.WithError(err).Warn("MongoDB unreachable, run persistence disabled")
			mongoClient = nil
		} else {
			orchOpts = append(orchOpts, discovery.WithRunStore(mongoClient))
			runs = mongoClient
			health.Pings["mongo"] = mongoClient.Ping
		}
	}

	var opener scraper.Opener
	if cfg.Discovery.ScrapeContacts {
		opener = scraper.NewFactory(cfg, pool, limiter, logger)
	}

	orch := discovery.New(discovery.OptionsFromConfig(cfg), llmManager, yt, llmManager, opener, logger, orchOpts...)

	logger.Info("Initializing background task manager")
	taskManager := background.NewTaskManager(cfg, taskStore, orch, logger)
	if err := taskManager.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start task manager")
	}
	health.Tasks = taskManager

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	routes.SetupRoutes(e, routes.Dependencies{
		Config:  cfg,
		Search:  orch,
		Tasks:   taskManager,
		Runs:    runs,
		Health:  health,
		Metrics: m,
		Pool:    pool,
		Limiter: limiter,
		Logger:  logger,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// stop accepting requests before cancelling queued runs
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error shutting down server")
		}

		if err := taskManager.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error stopping task manager")
		}

		if err := llmManager.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping LLM manager")
		}

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.WithError(err).Error("Error closing redis client")
			}
		}
		if mongoClient != nil {
			if err := mongoClient.Disconnect(shutdownCtx); err != nil {
				logger.WithError(err).Error("Error disconnecting from MongoDB")
			}
		}

		logger.Info("Server shutdown complete")
	}()

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.WithField("address", address).Info("Server starting")

	if err := e.Start(address); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("Server failed to start")
	}
	<-done
}
