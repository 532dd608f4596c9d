package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"channel-scout/internal/logging/types"
	"channel-scout/internal/scraper"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"
)

// run is the state of one Run call: the seen set, the accumulated results and
// the lazily opened scraper
type run struct {
	o       *Orchestrator
	req     Request
	logger  types.Logger
	seen    map[string]struct{}
	allowed []string
	result  *models.RunResult

	scraper        scraper.ContactScraper
	scrapeDisabled error
}

func (o *Orchestrator) newRun(req Request, started time.Time) *run {
	id := o.newID()
	allowed := make([]string, 0, len(req.Countries))
	for _, c := range req.Countries {
		if c = strings.TrimSpace(c); c != "" {
			allowed = append(allowed, c)
		}
	}
	return &run{
		o:       o,
		req:     req,
		logger:  o.logger.WithField("run_id", id),
		seen:    make(map[string]struct{}),
		allowed: allowed,
		result: &models.RunResult{
			RunID:     id,
			Query:     req.Query,
			Results:   []models.Result{},
			StartedAt: started.UTC(),
		},
	}
}

func (r *run) full() bool {
	return len(r.result.Results) >= r.req.Limit
}

func (r *run) searchKeyword(ctx context.Context, keyword string) {
	log := r.logger.WithField("keyword", keyword)

	candidates, err := r.o.searcher.Search(ctx, keyword, r.o.opts.PerKeywordLimit)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.o.metrics.KeywordError()
		log.WithError(err).Warn("keyword search failed")
		r.result.KeywordErrors = append(r.result.KeywordErrors, models.KeywordError{
			Keyword: keyword,
			Error:   err.Error(),
		})
		return
	}
	log.Debug("keyword searched", map[string]interface{}{"candidates": len(candidates)})

	for _, c := range candidates {
		if ctx.Err() != nil || r.full() {
			return
		}
		result, ok := r.consider(ctx, c)
		if !ok {
			continue
		}
		// a candidate finished after the deadline is incomplete
		if ctx.Err() != nil {
			return
		}
		r.result.Results = append(r.result.Results, result)
	}
}

// reject returns the filter that rejects c, or "" when c passes the
// pre-enrichment filters
func (r *run) reject(c models.Candidate) string {
	if _, dup := r.seen[c.ChannelID]; dup {
		return decisionDuplicate
	}
	r.seen[c.ChannelID] = struct{}{}

	if c.SubscriberCount < r.req.MinSubscribers {
		return decisionSubscribers
	}
	if len(r.allowed) > 0 {
		if !c.HasKnownCountry() {
			return decisionCountry
		}
		if !utils.ContainsFold(r.allowed, c.Country) {
			return decisionCountry
		}
	}
	return ""
}

func (r *run) consider(ctx context.Context, c models.Candidate) (models.Result, bool) {
	if decision := r.reject(c); decision != "" {
		r.o.metrics.Candidate(decision)
		return models.Result{}, false
	}
	log := r.logger.WithField("channel_id", c.ChannelID)
	res := models.Result{Candidate: c}

	recent := r.recentVideos(ctx, c)
	if recent.Failed() {
		res.Warnings = append(res.Warnings, warning("recent_videos", recent.Err))
	}
	res.RecentVideos = recent.OrDefault(models.RecentVideoSample{})
	res.AverageViews = res.RecentVideos.AverageViews()

	if r.req.MinAverageViews > 0 && res.AverageViews < r.req.MinAverageViews {
		r.o.metrics.Candidate(decisionViews)
		return models.Result{}, false
	}

	var scraped models.ContactInfo
	if r.req.ScrapeContacts {
		outcome := r.scrape(ctx, c)
		if outcome.Failed() {
			res.Warnings = append(res.Warnings, warning("contacts", outcome.Err))
		}
		scraped = outcome.OrDefault(models.ContactInfo{})
	}

	verdict := r.classify(ctx, c, scraped, res.RecentVideos)
	if verdict.Failed() {
		res.Warnings = append(res.Warnings, warning("classification", verdict.Err))
	}
	res.Classification = verdict.OrDefault(models.Classification{})
	res.Contact = models.MergeContacts(scraped, res.Classification.Contact)

	r.o.metrics.Candidate(decisionAccepted)
	log.Debug("channel accepted", map[string]interface{}{
		"is_icp":   res.Classification.IsICP,
		"why":      utils.Truncate(res.Classification.Why, 120),
		"warnings": len(res.Warnings),
	})
	return res, true
}

func (r *run) recentVideos(ctx context.Context, c models.Candidate) models.Outcome[models.RecentVideoSample] {
	sample, err := r.o.searcher.RecentVideos(ctx, c.ChannelID, c.UploadsPlaylistID, r.o.opts.RecentVideos)
	if err != nil {
		r.o.metrics.StageFailure("recent_videos")
		return models.Fail[models.RecentVideoSample](err)
	}
	return models.Ok(sample)
}

func (r *run) classify(ctx context.Context, c models.Candidate, scraped models.ContactInfo, sample models.RecentVideoSample) models.Outcome[models.Classification] {
	if r.o.classifier == nil {
		return models.Ok(models.Classification{})
	}
	text := ComposeChannelText(c, scraped, sample)
	verdict, err := r.o.classifier.Classify(ctx, r.req.Description, text)
	if err != nil {
		r.o.metrics.StageFailure("classification")
		return models.Fail[models.Classification](err)
	}
	return models.Ok(verdict)
}

// scrape reads contacts from the cache or the channel page
func (r *run) scrape(ctx context.Context, c models.Candidate) models.Outcome[models.ContactInfo] {
	log := r.logger.WithField("channel_id", c.ChannelID)

	if r.o.cache != nil {
		info, hit, err := r.o.cache.GetContact(ctx, c.ChannelID)
		if err != nil {
			log.WithError(err).Debug("contact cache lookup failed")
		}
		r.o.metrics.CacheLookup(hit)
		if hit {
			return models.Ok(info)
		}
	}

	s, err := r.session(ctx)
	if err != nil {
		r.o.metrics.StageFailure("scrape")
		return models.Fail[models.ContactInfo](err)
	}

	info, err := s.ExtractFromChannel(ctx, c.ChannelURL())
	if err != nil {
		r.o.metrics.StageFailure("scrape")
		return models.Fail[models.ContactInfo](err)
	}

	if r.o.cache != nil {
		if err := r.o.cache.SetContact(ctx, c.ChannelID, info); err != nil {
			log.WithError(err).Debug("contact cache write failed")
		}
	}
	return models.Ok(info)
}

// session opens the run's scraper on first use. A failed open disables
// scraping for the rest of the run.
func (r *run) session(ctx context.Context) (scraper.ContactScraper, error) {
	if r.scraper != nil {
		return r.scraper, nil
	}
	if r.scrapeDisabled != nil {
		return nil, r.scrapeDisabled
	}
	if r.o.opener == nil {
		r.scrapeDisabled = fmt.Errorf("contact scraping not configured")
		return nil, r.scrapeDisabled
	}

	s, err := r.o.opener.Open(ctx)
	if err != nil {
		r.scrapeDisabled = fmt.Errorf("failed to open scraper: %w", err)
		r.logger.WithError(err).Warn("contact scraping disabled for this run")
		return nil, r.scrapeDisabled
	}
	r.scraper = s
	return s, nil
}

func (r *run) closeScraper() {
	if r.scraper == nil {
		return
	}
	if err := r.scraper.Close(); err != nil {
		r.logger.WithError(err).Warn("failed to close scraper")
	}
	r.scraper = nil
}

func warning(stage string, err error) string {
	return fmt.Sprintf("%s: %v", stage, err)
}
