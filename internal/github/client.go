// Package github implements the tracker and VCS adapters on top of the
// GitHub REST API: issues and labels for review items, the git data API for
// branches and commits.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "featurefactory/internal/errors"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultAPIEndpoint = "https://api.github.com"
	DefaultTimeout     = 30 * time.Second
	MaxPageSize        = 100
	MaxPages           = 50
	MaxRetries         = 3
	maxResponseSize    = 50 * 1024 * 1024
)

// Client talks to one repository.
type Client struct {
	BaseURL string
	Token   string
	Owner   string
	Repo    string
	// Branch is what CurrentBranch reports; the API has no working copy.
	Branch     string
	HTTPClient *http.Client
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// NewClient creates a client for repository ("owner/repo").
func NewClient(token, repository, baseURL string) (*Client, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(repository), "/")
	if !ok || owner == "" || repo == "" {
		return nil, apperrors.NewConfigError(fmt.Sprintf("invalid repository %q, expected owner/repo", repository), "github.repository")
	}
	if baseURL == "" {
		baseURL = DefaultAPIEndpoint
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		Owner:      owner,
		Repo:       repo,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		RetryDelay: time.Second,
		Logger:     slog.Default(),
	}, nil
}

func (c *Client) repoPath(parts ...string) string {
	p := "/repos/" + c.Owner + "/" + c.Repo
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "featurefactory")
}

// do sends one API request, retrying rate limits, server errors and network
// failures with exponential backoff. A 2xx body is decoded into out when out
// is non-nil. Non-2xx responses become *apperrors.APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (http.Header, error) {
	target := path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.BaseURL + path
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var headers http.Header
	var respBody []byte
	attempt := 0
	op := func() error {
		attempt++
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		c.setHeaders(req)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed (attempt %d): %w", attempt, err)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response (attempt %d): %w", attempt, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := responseError(resp, data)
			if apperrors.IsRetryable(apiErr) {
				c.logger().Debug("github request will be retried", "method", method, "path", path, "status", resp.StatusCode, "attempt", attempt)
				if apiErr.RetryAfter > 0 {
					select {
					case <-ctx.Done():
						return backoff.Permanent(ctx.Err())
					case <-time.After(apiErr.RetryAfter):
					}
				}
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		headers = resp.Header
		respBody = data
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay()
	bo.MaxElapsedTime = 0
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, MaxRetries), ctx)); err != nil {
		return nil, err
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return headers, fmt.Errorf("failed to parse %s %s response: %w", method, path, err)
		}
	}
	return headers, nil
}

// responseError converts a failed response. GitHub signals primary rate
// limits with 403 and X-RateLimit-Remaining: 0, which is reported as 429.
func responseError(resp *http.Response, body []byte) *apperrors.APIError {
	status := resp.StatusCode
	if status == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		status = http.StatusTooManyRequests
	}

	var retryAfter time.Duration
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil {
			retryAfter = time.Duration(seconds) * time.Second
		}
	}

	message := strings.TrimSpace(string(body))
	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		message = parsed.Message
	}
	return apperrors.NewAPIError(status, message, retryAfter)
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

func nextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	m := linkNextPattern.FindStringSubmatch(link)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// paginate GETs path and follows Link headers, calling each with the raw
// page until each returns false or pages run out.
func (c *Client) paginate(ctx context.Context, path string, query url.Values, each func(page json.RawMessage) (bool, error)) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(MaxPageSize))

	next := path
	for page := 1; ; page++ {
		if page > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
		var raw json.RawMessage
		headers, err := c.do(ctx, http.MethodGet, next, query, nil, &raw)
		if err != nil {
			return err
		}
		more, err := each(raw)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		link, ok := nextPage(headers)
		if !ok {
			return nil
		}
		next, query = link, nil
	}
}

func (c *Client) retryDelay() time.Duration {
	if c.RetryDelay <= 0 {
		return time.Second
	}
	return c.RetryDelay
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
