package models

import "time"

// Result is one accepted channel returned to the caller
type Result struct {
	Candidate      `bson:",inline"`
	Contact        ContactInfo       `json:"contact" bson:"contact"`
	AverageViews   float64           `json:"average_views" bson:"average_views"`
	RecentVideos   RecentVideoSample `json:"recent_videos" bson:"recent_videos"`
	Classification Classification    `json:"classification" bson:"classification"`
	Warnings       []string          `json:"warnings,omitempty" bson:"warnings,omitempty"`
}

// KeywordError records a keyword whose search contributed nothing
type KeywordError struct {
	Keyword string `json:"keyword" bson:"keyword"`
	Error   string `json:"error" bson:"error"`
}

// RunResult is everything a discovery run produced
type RunResult struct {
	RunID         string         `json:"run_id" bson:"_id"`
	Query         string         `json:"query" bson:"query"`
	Keywords      []string       `json:"keywords" bson:"keywords"`
	Results       []Result       `json:"results" bson:"results"`
	KeywordErrors []KeywordError `json:"keyword_errors,omitempty" bson:"keyword_errors,omitempty"`
	TimedOut      bool           `json:"timed_out" bson:"timed_out"`
	StartedAt     time.Time      `json:"started_at" bson:"started_at"`
	Duration      time.Duration  `json:"duration" bson:"duration"`
}
