package captcha

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"

	api2captcha "github.com/2captcha/2captcha-go"

	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
)

// Options configures the 2captcha-backed solver
type Options struct {
	APIKey          string
	Timeout         time.Duration
	EnableAutoSolve bool
}

// solveClient is the part of the 2captcha client the solver needs
type solveClient interface {
	Solve(req api2captcha.Request) (string, string, error)
}

// Solver obtains reCAPTCHA v2 tokens from 2captcha. A solver without an API key
// or with auto-solve disabled never calls the service.
type Solver struct {
	enabled   bool
	timeout   time.Duration
	newClient func(timeout time.Duration) solveClient
	logger    types.Logger
}

// NewSolver creates a solver
func NewSolver(opts Options, logger types.Logger) *Solver {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithField("component", "2captcha")

	s := &Solver{
		enabled: opts.APIKey != "" && opts.EnableAutoSolve,
		timeout: opts.Timeout,
		logger:  logger,
	}
	if !s.enabled {
		logger.Info("captcha solving disabled", map[string]interface{}{
			"has_api_key":       opts.APIKey != "",
			"enable_auto_solve": opts.EnableAutoSolve,
		})
		return s
	}

	apiKey := opts.APIKey
	s.newClient = func(timeout time.Duration) solveClient {
		client := api2captcha.NewClient(apiKey)
		if timeout > 0 {
			secs := int(math.Ceil(timeout.Seconds()))
			client.DefaultTimeout = secs
			client.RecaptchaTimeout = secs
		}
		client.PollingInterval = 5
		return client
	}
	return s
}

// Enabled reports whether Solve can produce tokens
func (s *Solver) Enabled() bool {
	return s != nil && s.enabled && s.newClient != nil
}

// solveTimeout is the configured timeout capped by the ctx deadline. Zero
// leaves the client default in place.
func (s *Solver) solveTimeout(ctx context.Context) time.Duration {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < time.Second {
			remaining = time.Second
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

type solveResult struct {
	token string
	id    string
	err   error
}

// Solve blocks until a token arrives, the service fails or ctx ends.
// Every failure is reported as ("", false).
func (s *Solver) Solve(ctx context.Context, siteKey, pageURL string) (string, bool) {
	if !s.Enabled() || siteKey == "" {
		return "", false
	}

	start := time.Now()
	task := api2captcha.ReCaptcha{SiteKey: siteKey, Url: pageURL}
	req := task.ToRequest()

	// the 2captcha client polls without a context, so race it against ctx.
	// Its own timeout is capped by the ctx deadline, so an abandoned poll
	// stops about when ctx does.
	client := s.newClient(s.solveTimeout(ctx))
	done := make(chan solveResult, 1)
	go func() {
		token, id, err := client.Solve(req)
		done <- solveResult{token: token, id: id, err: err}
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("captcha solve abandoned", map[string]interface{}{
			"page_url": pageURL,
			"error":    ctx.Err().Error(),
		})
		return "", false
	case res := <-done:
		if res.err != nil || res.token == "" {
			fields := map[string]interface{}{"page_url": pageURL, "captcha_id": res.id}
			if res.err != nil {
				fields["error"] = res.err.Error()
			}
			s.logger.Warn("captcha solve failed", fields)
			return "", false
		}
		s.logger.Info("captcha solved", map[string]interface{}{
			"page_url":     pageURL,
			"solving_time": time.Since(start).String(),
		})
		return res.token, true
	}
}

var siteKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-sitekey="([^"]+)"`),
	regexp.MustCompile(`data-sitekey='([^']+)'`),
	regexp.MustCompile(`"sitekey"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`[?&]k=([0-9A-Za-z_-]{20,})`),
}

// DetectCaptcha reports whether the page carries a reCAPTCHA challenge and
// returns its site key, which may be empty when the marker has no key.
func DetectCaptcha(html string) (bool, string) {
	if !strings.Contains(strings.ToLower(html), "recaptcha") {
		return false, ""
	}
	return true, extractSiteKey(html)
}

func extractSiteKey(html string) string {
	for _, re := range siteKeyPatterns {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
