package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the discovery pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	CandidatesTotal *prometheus.CounterVec
	StageFailures   *prometheus.CounterVec
	KeywordErrors   prometheus.Counter
	CacheLookups    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SessionsActive  prometheus.GaugeFunc
}

// New creates and registers all collectors on a private registry. sessions,
// when non-nil, reports the number of browser sessions in use.
func New(sessions func() float64) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_scout_runs_total",
			Help: "Discovery runs, by outcome.",
		},
		[]string{"outcome"},
	)

	m.RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "channel_scout_run_duration_seconds",
			Help:    "Wall time of discovery runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	m.CandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_scout_candidates_total",
			Help: "Candidates seen by the pipeline, by decision.",
		},
		[]string{"decision"},
	)

	m.StageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_scout_stage_failures_total",
			Help: "Stage failures that fell back to a default value, by stage.",
		},
		[]string{"stage"},
	)

	m.KeywordErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_scout_keyword_errors_total",
			Help: "Keyword searches that failed upstream.",
		},
	)

	m.CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_scout_contact_cache_lookups_total",
			Help: "Contact cache lookups, by result.",
		},
		[]string{"result"},
	)

	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "channel_scout_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by route, method and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.CandidatesTotal,
		m.StageFailures,
		m.KeywordErrors,
		m.CacheLookups,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if sessions != nil {
		m.SessionsActive = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "channel_scout_browser_sessions_active",
				Help: "Browser sessions currently holding a pool slot.",
			},
			sessions,
		)
		m.registry.MustRegister(m.SessionsActive)
	}
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun records a finished run. outcome is completed, timed_out or failed.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// Candidate counts one filter decision
func (m *Metrics) Candidate(decision string) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(decision).Inc()
}

// StageFailure counts a stage that fell back to its default
func (m *Metrics) StageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

// KeywordError counts a failed keyword search
func (m *Metrics) KeywordError() {
	if m == nil {
		return
	}
	m.KeywordErrors.Inc()
}

// CacheLookup counts a contact cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
}
