// Package contact pulls an email address and outbound social links out of a
// rendered channel about page.
package contact

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"channel-scout/pkg/models"
)

var (
	emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)
	emailScan    = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

	// redirect links embedded in the page's inline JSON rather than in anchors
	embeddedRedirect = regexp.MustCompile(`https?:(?:\\?/){2}(?:www\.)?youtube\.com(?:\\?/)redirect\?[^"'\s<>]+`)
)

// cssArtifactPrefix collides with the email pattern in font URLs such as
// "wght@400;700"
const cssArtifactPrefix = "wght@"

var placeholderDomains = []string{"example.com", "test.com", "domain.com"}

var socialDomains = []string{
	"instagram.com", "facebook.com", "twitter.com", "x.com", "linkedin.com",
	"t.me", "threads.net", "discord.gg", "patreon.com", "onlyfans.com",
	"github.com", "pinterest.com", "linktr.ee", "soundcloud.com", "tiktok.com",
}

// Extract parses html and returns the best email and the social links found
func Extract(html string) (models.ContactInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.ContactInfo{}, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return models.ContactInfo{
		Email: Email(doc),
		Links: SocialLinks(doc),
	}, nil
}

// Email returns the first valid address from mailto anchors, then from a scan of
// the page text and markup. It returns "" when nothing valid is found.
func Email(doc *goquery.Document) string {
	var found string
	doc.Find(`a[href^="mailto:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if unescaped, err := url.PathUnescape(addr); err == nil {
			addr = unescaped
		}
		addr = strings.TrimSpace(addr)
		if IsValidEmail(addr) {
			found = addr
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	if found = scanEmail(pageText(doc)); found != "" {
		return found
	}
	if html, err := doc.Html(); err == nil {
		return scanEmail(html)
	}
	return ""
}

// pageText joins every text node with a space. doc.Text() concatenates
// adjacent nodes, which glues labels onto addresses.
func pageText(doc *goquery.Document) string {
	var parts []string
	doc.Find("*").Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) != "#text" {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func scanEmail(text string) string {
	for _, candidate := range emailScan.FindAllString(text, -1) {
		candidate = strings.Trim(candidate, ".-")
		if IsValidEmail(candidate) {
			return candidate
		}
	}
	return ""
}

// IsValidEmail applies the pattern, the CSS artifact check and the placeholder
// domain denylist
func IsValidEmail(email string) bool {
	if !emailPattern.MatchString(email) {
		return false
	}
	lower := strings.ToLower(email)
	if strings.HasPrefix(lower, cssArtifactPrefix) {
		return false
	}
	domain := lower[strings.LastIndexByte(lower, '@')+1:]
	return !matchesDomain(domain, placeholderDomains)
}

// SocialLinks unwraps youtube.com/redirect anchors and keeps the targets that
// point at a known social platform. The result is deduplicated and sorted.
func SocialLinks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	add := func(raw string) {
		if target, ok := unwrapRedirect(raw); ok {
			seen[target] = struct{}{}
		}
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		add(href)
	})

	if html, err := doc.Html(); err == nil {
		for _, raw := range embeddedRedirect.FindAllString(html, -1) {
			add(unescapeInlineJSON(raw))
		}
	}

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

var youtubeBase = &url.URL{Scheme: "https", Host: "www.youtube.com"}

// unwrapRedirect returns the decoded q target of a YouTube redirect link when it
// is a well-formed http(s) URL on a social domain
func unwrapRedirect(href string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	u = youtubeBase.ResolveReference(u)

	host := strings.ToLower(u.Hostname())
	if (host != "youtube.com" && host != "www.youtube.com") || u.Path != "/redirect" {
		return "", false
	}

	target := u.Query().Get("q")
	if target == "" {
		return "", false
	}
	// some links arrive double-encoded
	if strings.Contains(target, "%3A") || strings.Contains(target, "%2F") {
		if decoded, err := url.QueryUnescape(target); err == nil {
			target = decoded
		}
	}

	t, err := url.Parse(target)
	if err != nil || (t.Scheme != "http" && t.Scheme != "https") || t.Hostname() == "" {
		return "", false
	}
	if !matchesDomain(strings.ToLower(t.Hostname()), socialDomains) {
		return "", false
	}
	return t.String(), true
}

// matchesDomain reports whether host equals one of domains or is a subdomain of it
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func unescapeInlineJSON(s string) string {
	r := strings.NewReplacer(`\u0026`, "&", `\u003d`, "=", `\/`, "/")
	return r.Replace(s)
}
