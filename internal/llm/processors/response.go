package processors

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"channel-scout/internal/scraper/contact"
	"channel-scout/pkg/models"
)

// MaxKeywords caps the phrases taken from one expansion response
const MaxKeywords = 5

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]+|\d+\s*[.):-]|\(\d+\))\s*`)

// ParseKeywords turns a model reply into at most MaxKeywords search phrases.
// Bullets, numbering and wrapping quotes are dropped; duplicates are removed
// case-insensitively.
func ParseKeywords(raw string) []string {
	raw = stripCodeFence(raw)

	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `"'`+"`")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// ParseClassification reads a classifier reply. It never fails: anything it
// cannot understand leaves the default verdict and empty contacts.
func ParseClassification(raw string) models.Classification {
	var verdict models.Classification

	obj := firstJSONObject(stripCodeFence(raw))
	if obj == "" {
		return verdict
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return verdict
	}

	norm := normalizeFields(fields)
	pick := func(aliases ...string) (interface{}, bool) {
		for _, a := range aliases {
			if v, ok := norm[a]; ok {
				return v, true
			}
		}
		return nil, false
	}

	if v, ok := pick("isicp", "icp"); ok {
		verdict.IsICP = asBool(v)
	}
	if v, ok := pick("why", "reason", "reasoning"); ok {
		verdict.Why = asString(v)
	}
	if v, ok := pick("highticket"); ok {
		verdict.HighTicket = asBool(v)
	}
	if v, ok := pick("potentialicp"); ok {
		verdict.PotentialICP = asBool(v)
	}
	for _, alias := range []string{"contactemail", "email"} {
		if email := strings.TrimSpace(asString(norm[alias])); contact.IsValidEmail(email) {
			verdict.Contact.Email = email
			break
		}
	}
	if v, ok := pick("contactlinks", "links"); ok {
		verdict.Contact.Links = asLinks(v)
	}
	return verdict
}

// normalizeFields keys fields by normalizeKey. When two raw keys normalize to
// the same name the lexically smallest raw key wins.
func normalizeFields(fields map[string]interface{}) map[string]interface{} {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	norm := make(map[string]interface{}, len(fields))
	for _, k := range keys {
		nk := normalizeKey(k)
		if _, ok := norm[nk]; !ok {
			norm[nk] = fields[k]
		}
	}
	return norm
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language tag line
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// firstJSONObject returns the first balanced {...} in s that is valid JSON,
// honouring strings. Each '{' is tried as a start in turn.
func firstJSONObject(s string) string {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		if end := balancedEnd(s, start); end > 0 && json.Valid([]byte(s[start:end])) {
			return s[start:end]
		}
	}
	return ""
}

// balancedEnd returns the index just past the brace closing s[start], or -1
func balancedEnd(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		}
	}
	return false
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func asLinks(v interface{}) []string {
	var parts []string
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			parts = append(parts, asString(item))
		}
	case string:
		parts = strings.Split(t, ",")
	}

	var links []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || strings.EqualFold(p, models.NotAvailable) {
			continue
		}
		links = append(links, p)
	}
	return links
}
