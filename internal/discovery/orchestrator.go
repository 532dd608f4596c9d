package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"channel-scout/internal/config"
	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/internal/metrics"
	"channel-scout/internal/scraper"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"
)

// ErrExpansion marks a run that could not start because query expansion failed
var ErrExpansion = errors.New("query expansion failed")

// Candidate decisions, also used as metric labels
const (
	decisionDuplicate   = "duplicate"
	decisionSubscribers = "subscribers"
	decisionCountry     = "country"
	decisionViews       = "average_views"
	decisionAccepted    = "accepted"
)

// Options are the run defaults and bounds
type Options struct {
	DefaultLimit          int
	MaxLimit              int
	PerKeywordLimit       int
	RecentVideos          int64
	DefaultMinSubscribers int64
	RunTimeout            time.Duration
	ScrapeContacts        bool
}

// OptionsFromConfig reads the discovery section
func OptionsFromConfig(cfg *config.Config) Options {
	d := cfg.Discovery
	return Options{
		DefaultLimit:          d.DefaultLimit,
		MaxLimit:              d.MaxLimit,
		PerKeywordLimit:       d.PerKeywordLimit,
		RecentVideos:          d.RecentVideos,
		DefaultMinSubscribers: d.DefaultMinSubscribers,
		RunTimeout:            d.RunTimeout,
		ScrapeContacts:        d.ScrapeContacts,
	}
}

// Request is a fully resolved run request
type Request struct {
	Query           string
	Description     string
	MinSubscribers  int64
	MinAverageViews float64
	Countries       []string
	Limit           int
	ScrapeContacts  bool
}

// Orchestrator runs discovery. It holds only shared, concurrency-safe
// collaborators; all per-run state lives in a run.
type Orchestrator struct {
	opts       Options
	expander   KeywordExpander
	searcher   ChannelSearcher
	classifier Classifier
	opener     scraper.Opener
	cache      ContactCache
	store      RunStore
	metrics    *metrics.Metrics
	logger     types.Logger
	newID      func() string
	now        func() time.Time
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithContactCache enables cache-first contact scraping
func WithContactCache(c ContactCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithRunStore persists every finished run
func WithRunStore(s RunStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithMetrics records pipeline metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator. opener may be nil, which disables scraping.
func New(opts Options, expander KeywordExpander, searcher ChannelSearcher, classifier Classifier,
	opener scraper.Opener, logger types.Logger, options ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.PerKeywordLimit <= 0 {
		opts.PerKeywordLimit = 50
	}
	if opts.RecentVideos <= 0 {
		opts.RecentVideos = 3
	}

	o := &Orchestrator{
		opts:       opts,
		expander:   expander,
		searcher:   searcher,
		classifier: classifier,
		opener:     opener,
		logger:     logger.WithField("component", "discovery"),
		newID:      utils.GenerateRequestID,
		now:        time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// NewRequest resolves an API payload against the run defaults. A nil
// MinSubscribers takes the default; an explicit 0 disables the threshold.
func (o *Orchestrator) NewRequest(sr *models.SearchRequest) Request {
	req := Request{
		Query:          strings.TrimSpace(sr.Query),
		Description:    strings.TrimSpace(sr.Description),
		MinSubscribers: o.opts.DefaultMinSubscribers,
		Countries:      sr.AllowedCountries(),
		Limit:          sr.Limit,
		ScrapeContacts: o.opts.ScrapeContacts,
	}
	if sr.MinSubscribers != nil {
		req.MinSubscribers = *sr.MinSubscribers
	}
	if sr.MinViews != nil {
		req.MinAverageViews = *sr.MinViews
	}
	if sr.ScrapeContacts != nil {
		req.ScrapeContacts = *sr.ScrapeContacts
	}
	if req.Description == "" {
		req.Description = req.Query
	}
	return req
}

func (o *Orchestrator) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return o.opts.DefaultLimit
	case limit > o.opts.MaxLimit:
		return o.opts.MaxLimit
	}
	return limit
}

// Run executes one discovery run. It fails only when query expansion fails;
// otherwise it returns whatever it accumulated, flagged TimedOut when ctx
// ended first.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.RunResult, error) {
	if o.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
		defer cancel()
	}

	req.Limit = o.clampLimit(req.Limit)
	started := o.now()
	r := o.newRun(req, started)
	log := r.logger

	log.Info("discovery run started", map[string]interface{}{
		"query":           req.Query,
		"limit":           req.Limit,
		"min_subscribers": req.MinSubscribers,
		"countries":       req.Countries,
	})

	expanded, err := o.expander.ExpandQuery(ctx, req.Query)
	if err != nil {
		o.metrics.ObserveRun("failed", time.Since(started))
		log.WithError(err).Error("query expansion failed")
		return nil, fmt.Errorf("%w: %v", ErrExpansion, err)
	}
	r.result.Keywords = withQuery(req.Query, expanded)

	defer r.closeScraper()
	for _, keyword := range r.result.Keywords {
		if ctx.Err() != nil || r.full() {
			break
		}
		r.searchKeyword(ctx, keyword)
	}

	r.result.TimedOut = ctx.Err() != nil && !r.full()
	r.result.Duration = time.Since(started)

	outcome := "completed"
	if r.result.TimedOut {
		outcome = "timed_out"
	}
	o.metrics.ObserveRun(outcome, r.result.Duration)

	log.Info("discovery run finished", map[string]interface{}{
		"results":        len(r.result.Results),
		"keywords":       len(r.result.Keywords),
		"keyword_errors": len(r.result.KeywordErrors),
		"timed_out":      r.result.TimedOut,
		"duration_ms":    r.result.Duration.Milliseconds(),
	})

	o.persist(ctx, r.result)
	return r.result, nil
}

// persist saves the run on a context detached from the run deadline
func (o *Orchestrator) persist(ctx context.Context, result *models.RunResult) {
	if o.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.store.SaveRun(saveCtx, result); err != nil {
		o.logger.WithError(err).Warn("failed to persist run", map[string]interface{}{"run_id": result.RunID})
	}
}

// withQuery prepends query to keywords unless already present
func withQuery(query string, keywords []string) []string {
	out := []string{query}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" || strings.EqualFold(k, query) {
			continue
		}
		out = append(out, k)
	}
	return out
}
