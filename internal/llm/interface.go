package llm

import (
	"context"

	"channel-scout/pkg/models"
)

// LLMProvider is a generative model backend for the discovery pipeline
type LLMProvider interface {
	// ExpandQuery returns up to five related search phrases for query
	ExpandQuery(ctx context.Context, query string) ([]string, error)

	// Classify judges a channel against the business description. Only a
	// failed model call is an error; an unreadable reply yields the default verdict.
	Classify(ctx context.Context, description, channelText string) (models.Classification, error)

	// IsHealthy checks if the LLM provider is healthy and available
	IsHealthy(ctx context.Context) error

	// GetProviderName returns the name of the LLM provider
	GetProviderName() string
}
