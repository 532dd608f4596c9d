package discovery

import (
	"context"

	"channel-scout/pkg/models"
)

// KeywordExpander turns a query into related search phrases
type KeywordExpander interface {
	ExpandQuery(ctx context.Context, query string) ([]string, error)
}

// ChannelSearcher finds channels and samples their uploads
type ChannelSearcher interface {
	Search(ctx context.Context, keyword string, limit int) ([]models.Candidate, error)
	RecentVideos(ctx context.Context, channelID, uploadsPlaylistID string, n int64) (models.RecentVideoSample, error)
}

// Classifier judges a channel against a business description
type Classifier interface {
	Classify(ctx context.Context, description, channelText string) (models.Classification, error)
}

// ContactCache remembers scraped contacts per channel
type ContactCache interface {
	GetContact(ctx context.Context, channelID string) (models.ContactInfo, bool, error)
	SetContact(ctx context.Context, channelID string, info models.ContactInfo) error
}

// RunStore persists finished runs
type RunStore interface {
	SaveRun(ctx context.Context, run *models.RunResult) error
}
