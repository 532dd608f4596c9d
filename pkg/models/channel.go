package models

import "time"

const (
	// NotAvailable marks a text field the upstream response did not carry
	NotAvailable = "N/A"
	// UnknownCountry marks a channel without a declared country
	UnknownCountry = "unknown"
)

// Candidate is a raw channel search hit enriched with channel statistics
type Candidate struct {
	ChannelID         string `json:"channel_id" bson:"channel_id"`
	Title             string `json:"title" bson:"title"`
	Description       string `json:"description" bson:"description"`
	Country           string `json:"country" bson:"country"`
	CustomURL         string `json:"custom_url" bson:"custom_url"`
	SubscriberCount   int64  `json:"subscriber_count" bson:"subscriber_count"`
	VideoCount        int64  `json:"video_count" bson:"video_count"`
	ViewCount         int64  `json:"view_count" bson:"view_count"`
	UploadsPlaylistID string `json:"-" bson:"-"`
}

// HasKnownCountry reports whether the channel declared a country
func (c Candidate) HasKnownCountry() bool {
	return c.Country != "" && c.Country != UnknownCountry && c.Country != NotAvailable
}

// ChannelURL returns the public profile URL, preferring the custom handle
func (c Candidate) ChannelURL() string {
	if c.CustomURL != "" && c.CustomURL != NotAvailable {
		handle := c.CustomURL
		if handle[0] != '@' {
			handle = "@" + handle
		}
		return "https://www.youtube.com/" + handle
	}
	return "https://www.youtube.com/channel/" + c.ChannelID
}

// RecentVideo is a single upload summary used for engagement sampling
type RecentVideo struct {
	VideoID     string    `json:"video_id" bson:"video_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	ViewCount   int64     `json:"view_count" bson:"view_count"`
	PublishedAt time.Time `json:"published_at,omitempty" bson:"published_at,omitempty"`
}

// RecentVideoSample holds up to N uploads, most recent first
type RecentVideoSample []RecentVideo

// AverageViews returns the arithmetic mean of view counts, 0 for an empty sample
func (s RecentVideoSample) AverageViews() float64 {
	if len(s) == 0 {
		return 0
	}
	var total int64
	for _, v := range s {
		total += v.ViewCount
	}
	return float64(total) / float64(len(s))
}

// Titles returns the video titles in sample order
func (s RecentVideoSample) Titles() []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		out = append(out, v.Title)
	}
	return out
}

// Descriptions returns the video descriptions in sample order
func (s RecentVideoSample) Descriptions() []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		out = append(out, v.Description)
	}
	return out
}
