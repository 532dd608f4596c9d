package headed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/utils"
)

// overlaySelector matches cookie banners and interstitial close controls
const overlaySelector = `button[aria-label*="Close"], button[aria-label*="Dismiss"], button[aria-label*="close"], button[aria-label*="dismiss"]`

// Throttle gates navigations, typically per domain
type Throttle interface {
	Wait(ctx context.Context, rawURL string) error
	RecordSuccess(rawURL string)
	RecordFailure(rawURL string, err error)
}

// Options configures a browser session
type Options struct {
	Headless    bool
	UserAgent   string
	LoadTimeout time.Duration
}

// Session owns one rod browser and a single stealth page. It must not be used
// from more than one goroutine at a time.
type Session struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	throttle Throttle
	logger   types.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open launches a browser and prepares a stealth page
func Open(ctx context.Context, opts Options, throttle Throttle, logger types.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	logger = logger.WithField("component", "headed_browser")

	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("window-size", "1920,1080").
		Set("lang", "en-US")

	if chromePath := getSystemChromePath(); chromePath != "" {
		l = l.Bin(chromePath)
		logger.Debug("using system Chrome browser", map[string]interface{}{"chrome_path": chromePath})
	}
	if opts.UserAgent != "" {
		l = l.Set("user-agent", opts.UserAgent)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	s := &Session{
		opts:     opts,
		launcher: l,
		browser:  browser,
		throttle: throttle,
		logger:   logger,
	}

	page, err := s.newStealthPage()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.page = page

	logger.Info("browser session opened", map[string]interface{}{"headless": opts.Headless})
	return s, nil
}

// newStealthPage creates a page with navigator.webdriver hidden, a desktop
// viewport and the configured user agent
func (s *Session) newStealthPage() (*rod.Page, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		s.logger.Warn("failed to set viewport", map[string]interface{}{"error": err.Error()})
	}

	if s.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      s.opts.UserAgent,
			AcceptLanguage: "en-US,en;q=0.9",
		}); err != nil {
			s.logger.Warn("failed to set user agent", map[string]interface{}{"error": err.Error()})
		}
	}
	return page, nil
}

// Load navigates to url and waits for the load event. Running out of time
// yields a load_timeout error.
func (s *Session) Load(ctx context.Context, url string) error {
	if s.throttle != nil {
		if err := s.throttle.Wait(ctx, url); err != nil {
			return utils.NewLoadTimeout("throttle "+url, err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	err := rod.Try(func() {
		page := s.page.Context(navCtx)
		if err := page.Navigate(url); err != nil {
			panic(err)
		}
		if err := page.WaitLoad(); err != nil {
			panic(err)
		}
	})
	if err != nil {
		if s.throttle != nil {
			s.throttle.RecordFailure(url, err)
		}
		if navCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return utils.NewLoadTimeout("load "+url, err)
		}
		return utils.NewExtractionFailure("load "+url, err)
	}

	if s.throttle != nil {
		s.throttle.RecordSuccess(url)
	}
	s.logger.Debug("page loaded", map[string]interface{}{"url": url})
	return nil
}

// HTML returns the current document markup
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := rod.Try(func() {
		var err error
		html, err = s.page.Context(ctx).HTML()
		if err != nil {
			panic(err)
		}
	})
	if err != nil {
		return "", utils.NewExtractionFailure("read page html", err)
	}
	return html, nil
}

// DismissOverlays clicks every visible close/dismiss control. Failures are
// ignored since overlays are optional.
func (s *Session) DismissOverlays(ctx context.Context) {
	clicked := 0
	err := rod.Try(func() {
		elements, err := s.page.Context(ctx).Timeout(2 * time.Second).Elements(overlaySelector)
		if err != nil {
			return
		}
		for _, el := range elements {
			if visible, err := el.Visible(); err != nil || !visible {
				continue
			}
			if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
				clicked++
			}
		}
	})
	if err != nil {
		s.logger.Debug("overlay dismissal skipped", map[string]interface{}{"error": err.Error()})
		return
	}
	if clicked > 0 {
		s.logger.Debug("overlays dismissed", map[string]interface{}{"count": clicked})
	}
}

// Reload reloads the current page once and waits for load
func (s *Session) Reload(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	err := rod.Try(func() {
		page := s.page.Context(navCtx)
		if err := page.Reload(); err != nil {
			panic(err)
		}
		if err := page.WaitLoad(); err != nil {
			panic(err)
		}
	})
	if err != nil {
		if navCtx.Err() != nil {
			return utils.NewLoadTimeout("reload", err)
		}
		return utils.NewExtractionFailure("reload", err)
	}
	return nil
}

const injectTokenJS = `(token) => {
	const fields = document.querySelectorAll('#g-recaptcha-response, [name="g-recaptcha-response"]');
	for (const field of fields) {
		field.value = token;
		field.innerHTML = token;
	}
	const widget = document.querySelector('.g-recaptcha');
	const callback = widget && widget.getAttribute('data-callback');
	if (callback && typeof window[callback] === 'function') {
		window[callback](token);
	}
	return fields.length;
}`

// InjectCaptchaToken writes a solved reCAPTCHA token into g-recaptcha-response
func (s *Session) InjectCaptchaToken(ctx context.Context, token string) error {
	err := rod.Try(func() {
		if _, err := s.page.Context(ctx).Eval(injectTokenJS, token); err != nil {
			panic(err)
		}
	})
	if err != nil {
		return utils.NewExtractionFailure("inject captcha token", err)
	}
	return nil
}

// Close releases the page, the browser and the launcher. Safe to call twice.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			_ = rod.Try(func() { _ = s.page.Close() })
		}
		if s.browser != nil {
			s.closeErr = rod.Try(func() {
				if err := s.browser.Close(); err != nil {
					panic(err)
				}
			})
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.logger.Info("browser session closed")
	})
	return s.closeErr
}

// getSystemChromePath finds the system-installed Chrome/Chromium browser
func getSystemChromePath() string {
	for _, env := range []string{"CHROME_BIN", "CHROME_PATH"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}

	commonPaths := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/opt/google/chrome/chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
