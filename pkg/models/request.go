package models

import "strings"

// SearchRequest is the payload for a discovery run
type SearchRequest struct {
	Query          string   `json:"query" validate:"required,min=2,max=200"`
	Description    string   `json:"description,omitempty" validate:"max=2000"`
	MinSubscribers *int64   `json:"min_subscribers,omitempty" validate:"omitempty,min=0"`
	MinViews       *float64 `json:"min_views,omitempty" validate:"omitempty,min=0"`
	CountryCode    string   `json:"country_code,omitempty"` // comma separated, e.g. "US,GB"
	Countries      []string `json:"countries,omitempty" validate:"omitempty,dive,len=2"`
	Limit          int      `json:"limit,omitempty" validate:"omitempty,min=1"`
	ScrapeContacts *bool    `json:"scrape_contacts,omitempty"`
}

// AllowedCountries merges CountryCode and Countries into one upper-cased list.
// An empty result means no country filter.
func (r *SearchRequest) AllowedCountries() []string {
	raw := append([]string{}, r.Countries...)
	raw = append(raw, strings.Split(r.CountryCode, ",")...)

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
