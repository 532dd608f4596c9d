package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"channel-scout/internal/llm/processors"
	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"
)

const (
	expansionSystemPrompt = "You are a helpful assistant that generates related search terms for YouTube content discovery."

	classifySystemPrompt = `You qualify YouTube channels as sales leads. Compare the channel against the business's ideal customer profile and reply with ONLY a JSON object:

{
  "isicp": boolean - the channel matches the ideal customer profile,
  "why": "string - one or two sentences explaining the verdict",
  "high_ticket": boolean - the creator sells or promotes premium offers (courses, coaching, services),
  "potential_icp": boolean - not a match today but likely to become one,
  "contact_email": "string - a business email found in the channel text, or empty",
  "contact_links": ["array of strings - social or business links found in the channel text"]
}`

	// channel text is cut to this many bytes before prompting
	maxChannelText = 6000
)

// ClaudeOptions configures the Claude provider
type ClaudeOptions struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// ClaudeProvider implements the LLM provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client anthropic.Client
	opts   ClaudeOptions
	logger types.Logger
}

// NewClaudeProvider creates a new Claude provider instance. Extra request
// options are applied after the API key.
func NewClaudeProvider(opts ClaudeOptions, logger types.Logger, extra ...option.RequestOption) *ClaudeProvider {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if opts.Model == "" {
		opts.Model = "claude-3-5-haiku-latest"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(opts.APIKey)}, extra...)
	return &ClaudeProvider{
		client: anthropic.NewClient(clientOpts...),
		opts:   opts,
		logger: logger.WithFields(map[string]interface{}{"component": "claude", "model": opts.Model}),
	}
}

// ExpandQuery asks Claude for up to five related search phrases
func (cp *ClaudeProvider) ExpandQuery(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(`Generate 5 related search terms or phrases for YouTube content discovery.
Original query: %s
Requirements:
- Each term should be relevant to the original query
- Terms should be diverse but related
- Keep each term concise (2-4 words)
- Return only the 5 terms, one per line`, query)

	text, err := cp.complete(ctx, expansionSystemPrompt, prompt, 150, 0.7)
	if err != nil {
		return nil, fmt.Errorf("failed to expand query: %w", err)
	}

	keywords := processors.ParseKeywords(text)
	cp.logger.Debug("query expanded", map[string]interface{}{
		"query":    query,
		"keywords": keywords,
	})
	return keywords, nil
}

// Classify asks Claude for an ICP verdict on one channel
func (cp *ClaudeProvider) Classify(ctx context.Context, description, channelText string) (models.Classification, error) {
	prompt := fmt.Sprintf("BUSINESS DESCRIPTION:\n%s\n\nCHANNEL:\n%s",
		strings.TrimSpace(description),
		processors.CompactText(channelText, maxChannelText))

	text, err := cp.complete(ctx, classifySystemPrompt, prompt, int64(cp.opts.MaxTokens), float64(cp.opts.Temperature))
	if err != nil {
		return models.Classification{}, utils.NewClassificationFailure("claude classify", err)
	}

	verdict := processors.ParseClassification(text)
	if verdict.Why == "" && !verdict.IsICP {
		cp.logger.Debug("classifier reply gave default verdict", map[string]interface{}{"response_text": text})
	}
	return verdict, nil
}

func (cp *ClaudeProvider) complete(ctx context.Context, system, prompt string, maxTokens int64, temperature float64) (string, error) {
	start := time.Now()

	response, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cp.opts.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call Claude API: %w", err)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in Claude response")
	}

	cp.logger.Debug("Claude call completed", map[string]interface{}{
		"duration_ms":   time.Since(start).Milliseconds(),
		"output_tokens": response.Usage.OutputTokens,
	})
	return sb.String(), nil
}

// IsHealthy checks if the Claude provider is healthy and available
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if cp.opts.APIKey == "" {
		return fmt.Errorf("Claude API key not configured - set LLM_API_KEY environment variable")
	}
	if _, err := cp.complete(ctx, expansionSystemPrompt, "Hello", 16, 0); err != nil {
		return fmt.Errorf("Claude API health check failed: %w", err)
	}
	return nil
}

// GetProviderName returns the name of the LLM provider
func (cp *ClaudeProvider) GetProviderName() string {
	return "claude"
}
