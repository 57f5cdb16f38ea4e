package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	ferrors "featurefactory/internal/errors"
)

const (
	AnthropicModel     = "claude-sonnet-4-5"
	anthropicMaxTokens = 4096
)

// AnthropicClient is an engine backed by the Anthropic Messages API.
type AnthropicClient struct {
	client      anthropic.Client
	apiKey      string
	model       anthropic.Model
	temperature float64
	maxRetries  uint64
	interval    time.Duration
	logger      *slog.Logger
}

// NewAnthropicClient creates an Anthropic engine. Extra request options (for
// example option.WithBaseURL in tests) are passed to the SDK client.
func NewAnthropicClient(apiKey, model string, temperature float64, opts ...option.RequestOption) *AnthropicClient {
	if model == "" {
		model = AnthropicModel
	}
	// Retries are handled here so they share the engine backoff policy.
	all := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &AnthropicClient{
		client:      anthropic.NewClient(all...),
		apiKey:      apiKey,
		model:       anthropic.Model(model),
		temperature: temperature,
		maxRetries:  DefaultMaxRetries,
		interval:    time.Second,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger used for retry diagnostics.
func (c *AnthropicClient) WithLogger(logger *slog.Logger) *AnthropicClient {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithRetry overrides the retry budget and initial backoff interval.
func (c *AnthropicClient) WithRetry(maxRetries uint64, interval time.Duration) *AnthropicClient {
	c.maxRetries = maxRetries
	c.interval = interval
	return c
}

// Model implements Agent.
func (c *AnthropicClient) Model() string { return string(c.model) }

// Send implements Agent.
func (c *AnthropicClient) Send(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("anthropic: API key is required")
	}
	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	return sendWithRetry(ctx, c.logger, "anthropic", c.maxRetries, c.interval, func(ctx context.Context) (string, error) {
		message, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return "", classifyAnthropicError(err)
		}
		var text strings.Builder
		for _, block := range message.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if strings.TrimSpace(text.String()) == "" {
			return "", fmt.Errorf("anthropic response missing text output")
		}
		return text.String(), nil
	})
}

// classifyAnthropicError maps SDK status errors onto APIError so the shared
// retry policy sees 429 and 5xx as retryable.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic request failed: %w", ferrors.NewAPIError(apiErr.StatusCode, apiErr.Error(), 0))
	}
	return fmt.Errorf("anthropic request failed: %w", err)
}
