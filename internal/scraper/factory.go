package scraper

import (
	"context"
	"fmt"

	"channel-scout/internal/config"
	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/internal/scraper/captcha"
	"channel-scout/internal/scraper/engines/firecrawl"
	"channel-scout/internal/scraper/engines/headed"
	"channel-scout/internal/scraper/workers"
)

// Supported engine names
const (
	EngineHeaded    = "headed"
	EngineFirecrawl = "firecrawl"
	EngineHybrid    = "hybrid"
)

// Factory opens channel scrapers for the configured engine. Browser-backed
// scrapers hold a session pool slot until closed.
type Factory struct {
	engine  string
	pool    *workers.SessionPool
	limiter *workers.DomainLimiter
	solver  CaptchaSolver
	logger  types.Logger

	openHeaded    func(ctx context.Context) (Fetcher, error)
	openFirecrawl func() (Fetcher, error)
}

// NewFactory builds a factory from configuration. The pool and limiter are
// shared by every scraper it opens.
func NewFactory(cfg *config.Config, pool *workers.SessionPool, limiter *workers.DomainLimiter, logger types.Logger) *Factory {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	f := &Factory{
		engine:  cfg.Scraper.Engine,
		pool:    pool,
		limiter: limiter,
		logger:  logger.WithField("component", "scraper_factory"),
	}

	solver := captcha.NewSolver(captcha.Options{
		APIKey:          cfg.Scraper.Captcha.APIKey,
		Timeout:         cfg.Scraper.Captcha.Timeout,
		EnableAutoSolve: cfg.Scraper.Captcha.EnableAutoSolve,
	}, logger)
	if solver.Enabled() {
		f.solver = solver
	}

	headedOpts := headed.Options{
		Headless:    cfg.Scraper.HeadlessMode,
		UserAgent:   cfg.Scraper.UserAgent,
		LoadTimeout: cfg.Scraper.RequestTimeout,
	}
	f.openHeaded = func(ctx context.Context) (Fetcher, error) {
		var throttle headed.Throttle
		if limiter != nil {
			throttle = limiter
		}
		return headed.Open(ctx, headedOpts, throttle, logger)
	}

	fcOpts := firecrawl.Options{
		APIKey:  cfg.Firecrawl.APIKey,
		APIURL:  cfg.Firecrawl.APIURL,
		Timeout: cfg.Firecrawl.Timeout,
	}
	f.openFirecrawl = func() (Fetcher, error) {
		return firecrawl.New(fcOpts, logger)
	}
	return f
}

// Engine returns the configured engine name
func (f *Factory) Engine() string {
	return f.engine
}

// Open returns a ready scraper. The caller must Close it.
func (f *Factory) Open(ctx context.Context) (ContactScraper, error) {
	switch f.engine {
	case EngineFirecrawl:
		fetcher, err := f.openFirecrawl()
		if err != nil {
			return nil, err
		}
		return NewChannelScraper(fetcher, nil, f.logger), nil

	case EngineHeaded, EngineHybrid, "":
		return f.openBrowser(ctx)

	default:
		return nil, fmt.Errorf("unsupported scraping engine: %s", f.engine)
	}
}

func (f *Factory) openBrowser(ctx context.Context) (ContactScraper, error) {
	var lease *workers.Lease
	if f.pool != nil {
		var err error
		if lease, err = f.pool.Acquire(ctx); err != nil {
			return nil, err
		}
	}

	fetcher, err := f.openHeaded(ctx)
	if err != nil {
		lease.Release()
		return nil, err
	}

	cs := NewChannelScraper(fetcher, f.solver, f.logger)
	cs.release = lease.Release

	if f.engine == EngineHybrid {
		fallback, err := f.openFirecrawl()
		if err != nil {
			f.logger.WithError(err).Warn("hybrid engine running without firecrawl fallback")
		} else {
			cs.WithFallback(fallback)
		}
	}
	return cs, nil
}
