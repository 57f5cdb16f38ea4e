package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	ferrors "featurefactory/internal/errors"
)

const (
	// DefaultMaxRetries bounds retries of retryable engine failures (429, 5xx, timeouts).
	DefaultMaxRetries = 3
	// DefaultTimeout is the HTTP client timeout when none is configured.
	DefaultTimeout = 60 * time.Second
	minTimeout     = time.Second
)

// ChatClient is an OpenAI-compatible chat completions engine.
type ChatClient struct {
	cfg        HTTPClientConfig
	maxRetries uint64
	interval   time.Duration
	logger     *slog.Logger
}

func newChatClient(cfg HTTPClientConfig, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout < minTimeout {
		timeout = minTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &ChatClient{
		cfg:        cfg,
		maxRetries: DefaultMaxRetries,
		interval:   time.Second,
		logger:     slog.Default(),
	}
}

// WithLogger sets the logger used for retry diagnostics.
func (c *ChatClient) WithLogger(logger *slog.Logger) *ChatClient {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithMockResponder sets a mock responder for testing.
func (c *ChatClient) WithMockResponder(fn func(string) (string, error)) *ChatClient {
	c.cfg.MockResponder = fn
	return c
}

// WithRetry overrides the retry budget and initial backoff interval.
func (c *ChatClient) WithRetry(maxRetries uint64, interval time.Duration) *ChatClient {
	c.maxRetries = maxRetries
	c.interval = interval
	return c
}

// Provider returns the provider name, e.g. "deepseek".
func (c *ChatClient) Provider() string { return c.cfg.Provider }

// Model implements Agent.
func (c *ChatClient) Model() string { return c.cfg.Model }

// Endpoint returns the chat completions URL.
func (c *ChatClient) Endpoint() string { return c.cfg.APIURL }

// Send implements Agent.
func (c *ChatClient) Send(ctx context.Context, prompt string) (string, error) {
	return sendWithRetry(ctx, c.logger, c.cfg.Provider, c.maxRetries, c.interval, func(ctx context.Context) (string, error) {
		return SendOnce(ctx, c.cfg, prompt)
	})
}

// sendWithRetry retries retryable failures with exponential backoff. Deadline
// expiry on ctx is reported as a timeout and never retried.
func sendWithRetry(ctx context.Context, logger *slog.Logger, provider string, maxRetries uint64, interval time.Duration, call func(context.Context) (string, error)) (string, error) {
	start := time.Now()
	var result string
	attempt := 0
	op := func() error {
		attempt++
		out, err := call(ctx)
		if err == nil {
			result = out
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if !ferrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		logger.Info("retrying engine call", "provider", provider, "attempt", attempt, "error", err)
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = interval
	eb.MaxElapsedTime = 0
	var b backoff.BackOff = backoff.WithMaxRetries(eb, maxRetries)
	b = backoff.WithContext(b, ctx)

	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s request timed out after %dms: %w", provider, time.Since(start).Milliseconds(), err)
		}
		return "", err
	}
	return result, nil
}
