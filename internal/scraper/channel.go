package scraper

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-rod/rod"

	"channel-scout/internal/logging/types"
	"channel-scout/internal/scraper/captcha"
	"channel-scout/internal/scraper/contact"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"
)

var channelIDPattern = regexp.MustCompile(`^UC[\w-]{22}$`)

// NormalizeChannelURL turns a handle, a bare channel ID or a profile URL into
// the channel's about page URL
func NormalizeChannelURL(input string) (string, error) {
	s := strings.TrimSpace(input)
	switch {
	case s == "":
		return "", fmt.Errorf("empty channel reference")
	case strings.HasPrefix(s, "@"):
		s = "https://www.youtube.com/" + s
	case channelIDPattern.MatchString(s):
		s = "https://www.youtube.com/channel/" + s
	case strings.HasPrefix(s, "youtube.com/"), strings.HasPrefix(s, "www.youtube.com/"):
		s = "https://" + s
	case !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://"):
		return "", fmt.Errorf("unrecognised channel reference %q", input)
	}

	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if strings.HasSuffix(s, "/about") {
		return s, nil
	}
	return s + "/about", nil
}

// ChannelScraper visits channel about pages through one Fetcher. When a
// fallback is set, pages still behind a CAPTCHA are fetched again with it.
type ChannelScraper struct {
	fetcher  Fetcher
	fallback Fetcher
	solver   CaptchaSolver
	logger   types.Logger
	release  func()
}

// NewChannelScraper wires a fetcher and an optional solver
func NewChannelScraper(fetcher Fetcher, solver CaptchaSolver, logger types.Logger) *ChannelScraper {
	return &ChannelScraper{
		fetcher: fetcher,
		solver:  solver,
		logger:  logger.WithField("component", "channel_scraper"),
	}
}

// WithFallback sets a second fetcher used when a challenge survives the retry
func (cs *ChannelScraper) WithFallback(f Fetcher) *ChannelScraper {
	cs.fallback = f
	return cs
}

// ExtractFromChannel returns the email and social links on a channel's about
// page. On any failure it returns an empty ContactInfo and a typed error; the
// pair is a best-effort value.
func (cs *ChannelScraper) ExtractFromChannel(ctx context.Context, channelURL string) (info models.ContactInfo, err error) {
	aboutURL, err := NormalizeChannelURL(channelURL)
	if err != nil {
		return models.ContactInfo{}, utils.NewExtractionFailure("normalize url", err)
	}
	log := cs.logger.WithField("url", aboutURL)

	// rod's Must* helpers and the page driver may panic
	if perr := rod.Try(func() {
		info, err = cs.extract(ctx, aboutURL, log)
	}); perr != nil {
		return models.ContactInfo{}, utils.NewExtractionFailure("extract "+aboutURL, perr)
	}
	if err != nil {
		if !utils.IsKind(err, utils.KindLoadTimeout) && !utils.IsKind(err, utils.KindExtraction) {
			err = utils.NewExtractionFailure("extract "+aboutURL, err)
		}
		log.WithError(err).Warn("contact extraction failed")
		return models.ContactInfo{}, err
	}

	log.Debug("contacts extracted", map[string]interface{}{
		"has_email":  info.Email != "",
		"link_count": len(info.Links),
	})
	return info, nil
}

func (cs *ChannelScraper) extract(ctx context.Context, aboutURL string, log types.Logger) (models.ContactInfo, error) {
	if err := cs.fetcher.Load(ctx, aboutURL); err != nil {
		return models.ContactInfo{}, err
	}
	html, err := cs.fetcher.HTML(ctx)
	if err != nil {
		return models.ContactInfo{}, err
	}

	if found, siteKey := captcha.DetectCaptcha(html); found {
		html, err = cs.resolveChallenge(ctx, aboutURL, siteKey, html, log)
		if err != nil {
			return models.ContactInfo{}, err
		}
	}

	cs.fetcher.DismissOverlays(ctx)
	if fresh, err := cs.fetcher.HTML(ctx); err == nil && fresh != "" {
		html = fresh
	}

	return contact.Extract(html)
}

// resolveChallenge solves, injects and reloads at most once, then optionally
// refetches with the fallback engine. It returns the best HTML available.
func (cs *ChannelScraper) resolveChallenge(ctx context.Context, aboutURL, siteKey, html string, log types.Logger) (string, error) {
	log.Info("captcha detected", map[string]interface{}{"has_site_key": siteKey != ""})

	if cs.solver != nil && siteKey != "" {
		if token, ok := cs.solver.Solve(ctx, siteKey, aboutURL); ok {
			if err := cs.fetcher.InjectCaptchaToken(ctx, token); err != nil {
				log.WithError(err).Warn("captcha token injection failed")
			} else if err := cs.fetcher.Reload(ctx); err != nil {
				return "", err
			} else if fresh, err := cs.fetcher.HTML(ctx); err == nil {
				html = fresh
			}
		}
	}

	if found, _ := captcha.DetectCaptcha(html); !found || cs.fallback == nil {
		return html, nil
	}

	if err := cs.fallback.Load(ctx, aboutURL); err != nil {
		log.WithError(err).Warn("fallback fetch failed")
		return html, nil
	}
	fresh, err := cs.fallback.HTML(ctx)
	if err != nil {
		return html, nil
	}
	log.Info("page fetched with fallback engine")
	return fresh, nil
}

// Close releases the fetchers and the pool slot. Safe to call twice.
func (cs *ChannelScraper) Close() error {
	var errs []error
	if cs.fetcher != nil {
		errs = append(errs, cs.fetcher.Close())
	}
	if cs.fallback != nil {
		errs = append(errs, cs.fallback.Close())
	}
	if cs.release != nil {
		cs.release()
	}
	return errors.Join(errs...)
}
