package scraper

import (
	"context"

	"channel-scout/pkg/models"
)

// Fetcher loads one page at a time and exposes its markup. Implementations are
// not safe for concurrent use.
type Fetcher interface {
	Load(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	DismissOverlays(ctx context.Context)
	Reload(ctx context.Context) error
	InjectCaptchaToken(ctx context.Context, token string) error
	Close() error
}

// CaptchaSolver returns a solved token, or false when none could be obtained
type CaptchaSolver interface {
	Solve(ctx context.Context, siteKey, pageURL string) (string, bool)
}

// ContactScraper extracts contacts from channel about pages through one owned
// browser session. Close releases the session.
type ContactScraper interface {
	ExtractFromChannel(ctx context.Context, channelURL string) (models.ContactInfo, error)
	Close() error
}

// Opener opens a ContactScraper bound to a fresh session
type Opener interface {
	Open(ctx context.Context) (ContactScraper, error)
}
