// Package firecrawl fetches rendered pages through the Firecrawl API. It is the
// browserless alternative to the headed engine: no overlays to dismiss and no
// CAPTCHA token injection.
package firecrawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mendableai/firecrawl-go"

	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/utils"
)

// ErrUnsupported is returned for browser-only operations
var ErrUnsupported = errors.New("operation not supported by firecrawl engine")

// Options configures the fetcher
type Options struct {
	APIKey  string
	APIURL  string
	Timeout time.Duration
}

type scrapeClient interface {
	ScrapeURL(url string, params *firecrawl.ScrapeParams) (*firecrawl.FirecrawlDocument, error)
}

// Fetcher holds the HTML of the last page it loaded
type Fetcher struct {
	client  scrapeClient
	timeout time.Duration
	logger  types.Logger

	url  string
	html string
}

// New creates a Firecrawl-backed fetcher
func New(opts Options, logger types.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("firecrawl API key is required")
	}

	app, err := firecrawl.NewFirecrawlApp(opts.APIKey, opts.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firecrawl: %w", err)
	}
	return newFetcher(app, opts.Timeout, logger), nil
}

func newFetcher(client scrapeClient, timeout time.Duration, logger types.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		client:  client,
		timeout: timeout,
		logger:  logger.WithField("component", "firecrawl"),
	}
}

type scrapeResult struct {
	doc *firecrawl.FirecrawlDocument
	err error
}

// Load scrapes url and keeps its rendered HTML
func (f *Fetcher) Load(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// the SDK call takes no context
	done := make(chan scrapeResult, 1)
	go func() {
		doc, err := f.client.ScrapeURL(url, &firecrawl.ScrapeParams{Formats: []string{"html"}})
		done <- scrapeResult{doc: doc, err: err}
	}()

	select {
	case <-ctx.Done():
		return utils.NewLoadTimeout("firecrawl scrape "+url, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return utils.NewExtractionFailure("firecrawl scrape "+url, res.err)
		}
		if res.doc == nil || res.doc.HTML == "" {
			return utils.NewExtractionFailure("firecrawl scrape "+url, errors.New("empty document"))
		}
		f.url = url
		f.html = res.doc.HTML
		f.logger.Debug("page scraped", map[string]interface{}{"url": url, "html_length": len(f.html)})
		return nil
	}
}

// HTML returns the markup of the last loaded page
func (f *Fetcher) HTML(ctx context.Context) (string, error) {
	if f.url == "" {
		return "", utils.NewExtractionFailure("read page html", errors.New("no page loaded"))
	}
	return f.html, nil
}

// DismissOverlays is a no-op, Firecrawl returns the document without overlays
func (f *Fetcher) DismissOverlays(ctx context.Context) {}

// Reload scrapes the last URL again
func (f *Fetcher) Reload(ctx context.Context) error {
	if f.url == "" {
		return utils.NewExtractionFailure("reload", errors.New("no page loaded"))
	}
	return f.Load(ctx, f.url)
}

func (f *Fetcher) InjectCaptchaToken(ctx context.Context, token string) error {
	return ErrUnsupported
}

func (f *Fetcher) Close() error { return nil }
