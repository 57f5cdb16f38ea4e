package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "featurefactory/internal/errors"
	"featurefactory/internal/tracker"
)

type apiLabel struct {
	Name string `json:"name"`
}

type apiIssue struct {
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	State       string          `json:"state"`
	HTMLURL     string          `json:"html_url"`
	URL         string          `json:"url"`
	Labels      []apiLabel      `json:"labels"`
	PullRequest json.RawMessage `json:"pull_request,omitempty"`
}

func (i apiIssue) item() tracker.Item {
	labels := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, l.Name)
	}
	u := i.HTMLURL
	if u == "" {
		u = i.URL
	}
	return tracker.Item{
		Number: i.Number,
		URL:    u,
		State:  strings.ToLower(i.State),
		Title:  i.Title,
		Body:   i.Body,
		Labels: tracker.NormalizeLabels(labels),
	}
}

var _ tracker.Tracker = (*Client)(nil)

// EnsureLabel creates label unless a label with the same name in any case
// already exists.
func (c *Client) EnsureLabel(ctx context.Context, label tracker.Label) (bool, error) {
	exists := false
	err := c.paginate(ctx, c.repoPath("labels"), nil, func(page json.RawMessage) (bool, error) {
		var labels []apiLabel
		if err := json.Unmarshal(page, &labels); err != nil {
			return false, fmt.Errorf("failed to parse labels response: %w", err)
		}
		for _, l := range labels {
			if strings.EqualFold(l.Name, label.Name) {
				exists = true
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return false, apperrors.NewTransportError("list labels", err)
	}
	if exists {
		return true, nil
	}

	body := map[string]string{"name": label.Name, "color": label.Color, "description": label.Description}
	if _, err := c.do(ctx, http.MethodPost, c.repoPath("labels"), nil, body, nil); err != nil {
		c.logger().Warn("failed to create label", "label", label.Name, "error", err)
		return false, nil
	}
	return true, nil
}

// FindOpenItemByTitle returns the first open issue whose title equals title exactly.
func (c *Client) FindOpenItemByTitle(ctx context.Context, title string) (*tracker.Item, error) {
	var found *tracker.Item
	err := c.eachIssue(ctx, tracker.StateOpen, func(issue apiIssue) bool {
		if issue.Title == title {
			it := issue.item()
			found = &it
			return false
		}
		return true
	})
	if err != nil {
		return nil, apperrors.NewTransportError("find issue by title", err)
	}
	return found, nil
}

// CreateItem opens an issue and returns its html URL.
func (c *Client) CreateItem(ctx context.Context, title, body string, labels []string) (string, error) {
	req := map[string]interface{}{"title": title, "body": body}
	if len(labels) > 0 {
		req["labels"] = labels
	}
	var issue apiIssue
	if _, err := c.do(ctx, http.MethodPost, c.repoPath("issues"), nil, req, &issue); err != nil {
		return "", apperrors.NewTransportError("create issue", err)
	}
	return issue.item().URL, nil
}

// ListItems lists issues (never pull requests) up to opts.Limit.
func (c *Client) ListItems(ctx context.Context, opts tracker.ListOptions) ([]tracker.Item, error) {
	state := opts.State
	if state == "" {
		state = tracker.StateOpen
	}
	var items []tracker.Item
	err := c.eachIssue(ctx, state, func(issue apiIssue) bool {
		items = append(items, issue.item())
		return opts.Limit <= 0 || len(items) < opts.Limit
	})
	if err != nil {
		return nil, apperrors.NewTransportError("list issues", err)
	}
	return items, nil
}

func (c *Client) eachIssue(ctx context.Context, state string, fn func(apiIssue) bool) error {
	query := url.Values{}
	query.Set("state", state)
	return c.paginate(ctx, c.repoPath("issues"), query, func(page json.RawMessage) (bool, error) {
		var issues []apiIssue
		if err := json.Unmarshal(page, &issues); err != nil {
			return false, fmt.Errorf("failed to parse issues response: %w", err)
		}
		for _, issue := range issues {
			// the issues endpoint also returns pull requests
			if len(issue.PullRequest) > 0 && string(issue.PullRequest) != "null" {
				continue
			}
			if !fn(issue) {
				return false, nil
			}
		}
		return true, nil
	})
}

// AddLabels adds labels to issue number.
func (c *Client) AddLabels(ctx context.Context, number int, labels []string) error {
	labels = tracker.NormalizeLabels(labels)
	if len(labels) == 0 {
		return nil
	}
	body := map[string][]string{"labels": labels}
	if _, err := c.do(ctx, http.MethodPost, c.repoPath("issues", strconv.Itoa(number), "labels"), nil, body, nil); err != nil {
		return apperrors.NewTransportError(fmt.Sprintf("add labels to #%d", number), err)
	}
	return nil
}

// RemoveLabels removes each label; labels the issue does not carry are ignored.
func (c *Client) RemoveLabels(ctx context.Context, number int, labels []string) error {
	for _, label := range tracker.NormalizeLabels(labels) {
		path := c.repoPath("issues", strconv.Itoa(number), "labels", url.PathEscape(label))
		if _, err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return apperrors.NewTransportError(fmt.Sprintf("remove label %s from #%d", label, number), err)
		}
	}
	return nil
}

// CloseItem closes issue number.
func (c *Client) CloseItem(ctx context.Context, number int) error {
	body := map[string]string{"state": "closed"}
	if _, err := c.do(ctx, http.MethodPatch, c.repoPath("issues", strconv.Itoa(number)), nil, body, nil); err != nil {
		return apperrors.NewTransportError(fmt.Sprintf("close issue #%d", number), err)
	}
	return nil
}
