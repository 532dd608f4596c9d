package workers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"channel-scout/internal/logging/types"
)

// ErrCircuitOpen is returned by Wait while a domain's breaker is open
var ErrCircuitOpen = fmt.Errorf("circuit breaker open")

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns string representation of CircuitState
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type domainState struct {
	limiter      *rate.Limiter
	requests     int64
	failures     int
	lastFailTime time.Time
	state        CircuitState
}

// DomainLimiter throttles page navigations per host and trips a breaker after
// consecutive failures. It is shared by every browser session in the process.
type DomainLimiter struct {
	perMinute    int
	burst        int
	maxFailures  int
	resetTimeout time.Duration

	mu      sync.Mutex
	domains map[string]*domainState
	logger  types.Logger
	now     func() time.Time
}

// NewDomainLimiter allows perMinute navigations per host
func NewDomainLimiter(perMinute int, logger types.Logger) *DomainLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &DomainLimiter{
		perMinute:    perMinute,
		burst:        3,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
		domains:      make(map[string]*domainState),
		logger:       logger.WithField("component", "domain_limiter"),
		now:          time.Now,
	}
}

// Wait blocks until a navigation to rawURL is allowed or ctx ends
func (dl *DomainLimiter) Wait(ctx context.Context, rawURL string) error {
	domain := DomainOf(rawURL)

	dl.mu.Lock()
	ds := dl.get(domain)
	if ds.state == CircuitOpen {
		if dl.now().Sub(ds.lastFailTime) < dl.resetTimeout {
			dl.mu.Unlock()
			return fmt.Errorf("%s: %w", domain, ErrCircuitOpen)
		}
		ds.state = CircuitHalfOpen
		dl.logger.Info("circuit breaker half-open", map[string]interface{}{"domain": domain})
	}
	ds.requests++
	limiter := ds.limiter
	dl.mu.Unlock()

	return limiter.Wait(ctx)
}

// RecordSuccess closes a half-open breaker
func (dl *DomainLimiter) RecordSuccess(rawURL string) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	ds := dl.get(DomainOf(rawURL))
	ds.failures = 0
	ds.state = CircuitClosed
}

// RecordFailure counts a failed navigation and opens the breaker at the threshold
func (dl *DomainLimiter) RecordFailure(rawURL string, err error) {
	domain := DomainOf(rawURL)

	dl.mu.Lock()
	defer dl.mu.Unlock()

	ds := dl.get(domain)
	ds.failures++
	ds.lastFailTime = dl.now()
	if ds.state == CircuitHalfOpen || (ds.state == CircuitClosed && ds.failures >= dl.maxFailures) {
		ds.state = CircuitOpen
		fields := map[string]interface{}{"domain": domain, "failures": ds.failures}
		if err != nil {
			fields["error"] = err.Error()
		}
		dl.logger.Warn("circuit breaker opened", fields)
	}
}

// State returns the breaker state for the host of rawURL
func (dl *DomainLimiter) State(rawURL string) CircuitState {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.get(DomainOf(rawURL)).state
}

// Stats returns per-domain request and failure counters
func (dl *DomainLimiter) Stats() map[string]map[string]interface{} {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	out := make(map[string]map[string]interface{}, len(dl.domains))
	for domain, ds := range dl.domains {
		out[domain] = map[string]interface{}{
			"requests":      ds.requests,
			"failures":      ds.failures,
			"circuit_state": ds.state.String(),
		}
	}
	return out
}

// get must be called with mu held
func (dl *DomainLimiter) get(domain string) *domainState {
	ds, ok := dl.domains[domain]
	if !ok {
		ds = &domainState{
			limiter: rate.NewLimiter(rate.Limit(float64(dl.perMinute)/60.0), dl.burst),
			state:   CircuitClosed,
		}
		dl.domains[domain] = ds
	}
	return ds
}

// DomainOf returns the lower-cased host of rawURL, or "unknown"
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
