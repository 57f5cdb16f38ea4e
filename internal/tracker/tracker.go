// Package tracker abstracts the issue tracker that holds review and
// tracking items.
package tracker

import (
	"context"
	"log/slog"
	"strings"
)

// Item states as reported by the tracker.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateAll    = "all"
)

// Item is an issue as seen through the tracker.
type Item struct {
	Number int
	URL    string
	State  string
	Title  string
	Labels []string
	Body   string
}

// HasLabel reports whether the item carries name, ignoring case.
func (i Item) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// ListOptions filters ListItems.
type ListOptions struct {
	State string
	Limit int
}

// Label is a tracker label definition.
type Label struct {
	Name        string
	Color       string
	Description string
}

// Tracker is the set of issue-tracker operations the pipeline depends on.
// Implementations surface network and service failures as errors.
type Tracker interface {
	// EnsureLabel creates the label if no label with that name (any case)
	// exists. It reports false when creation failed; err is only set when the
	// tracker could not be queried at all.
	EnsureLabel(ctx context.Context, label Label) (bool, error)
	FindOpenItemByTitle(ctx context.Context, title string) (*Item, error)
	// CreateItem opens an item and returns its URL.
	CreateItem(ctx context.Context, title, body string, labels []string) (string, error)
	ListItems(ctx context.Context, opts ListOptions) ([]Item, error)
	AddLabels(ctx context.Context, number int, labels []string) error
	// RemoveLabels removes each label, tolerating labels the item lacks.
	RemoveLabels(ctx context.Context, number int, labels []string) error
	CloseItem(ctx context.Context, number int) error
}

// Well-known labels.
var (
	LabelFeatureProposal = Label{Name: "feature-proposal", Color: "0E8A16", Description: "Feature proposal items"}
	LabelPendingReview   = Label{Name: "pending-review", Color: "D4C5F9", Description: "Waiting for proposal decision"}
	LabelApproved        = Label{Name: "approved", Color: "0E8A16", Description: "Proposal approved"}
	LabelRejected        = Label{Name: "rejected", Color: "B60205", Description: "Proposal rejected"}
	LabelFeatureDev      = Label{Name: "feature-dev", Color: "0052CC", Description: "Development tracking issues"}
)

// ReviewLabels are ensured before proposing or syncing.
var ReviewLabels = []Label{LabelFeatureProposal, LabelPendingReview, LabelApproved, LabelRejected}

// EnsureLabels ensures every label exists. A label that cannot be created is
// logged and treated as present; a tracker that cannot be queried aborts.
func EnsureLabels(ctx context.Context, t Tracker, labels []Label, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, l := range labels {
		ok, err := t.EnsureLabel(ctx, l)
		if err != nil {
			return err
		}
		if !ok {
			logger.Warn("label creation failed, assuming it exists", "label", l.Name)
		}
	}
	return nil
}

// CreateItemSafe creates an item and, if that fails, retries once without
// labels. The error of the second attempt is returned.
func CreateItemSafe(ctx context.Context, t Tracker, title, body string, labels []string) (string, error) {
	url, err := t.CreateItem(ctx, title, body, NormalizeLabels(labels))
	if err == nil {
		return url, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	return t.CreateItem(ctx, title, body, nil)
}

// NormalizeLabels lowercases, trims and de-duplicates label names, dropping blanks.
func NormalizeLabels(labels []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range labels {
		name := strings.ToLower(strings.TrimSpace(l))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
