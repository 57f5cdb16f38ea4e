package pipeline

import (
	"context"
	"fmt"
	"time"

	"featurefactory/internal/telemetry"
	"featurefactory/internal/tracker"
)

// SyncStats counts how open review items were classified.
type SyncStats struct {
	ApprovedOpen   int
	RejectedClosed int
	Pending        int
	Skipped        int
	Failed         int
}

// ApprovalSyncStage applies label decisions to open review items. Label
// state is read live on every run; the registry is not consulted.
type ApprovalSyncStage struct {
	Tracker   tracker.Tracker
	ListLimit int
	Env
}

// Decision is the classification of one review item.
type Decision int

const (
	DecisionNotProposal Decision = iota
	DecisionPending
	DecisionApproved
	DecisionRejected
)

// Classify derives the decision from an item's labels. Rejected wins over approved.
func Classify(item tracker.Item) Decision {
	switch {
	case !item.HasLabel(tracker.LabelFeatureProposal.Name):
		return DecisionNotProposal
	case item.HasLabel(tracker.LabelRejected.Name):
		return DecisionRejected
	case item.HasLabel(tracker.LabelApproved.Name):
		return DecisionApproved
	default:
		return DecisionPending
	}
}

// Run closes rejected review items and counts the rest. Approved items stay
// open for the promotion stage.
func (s *ApprovalSyncStage) Run(ctx context.Context) (stats SyncStats, err error) {
	logger := s.logger(StageApprovalSync)
	ctx, span := telemetry.StartSpan(ctx, "pipeline.approval_sync")
	defer func() { telemetry.EndSpan(span, err) }()
	defer s.observe(StageApprovalSync, time.Now())

	if err := tracker.EnsureLabels(ctx, s.Tracker, tracker.ReviewLabels, logger); err != nil {
		return stats, fmt.Errorf("failed to ensure review labels: %w", err)
	}

	items, err := s.Tracker.ListItems(ctx, tracker.ListOptions{State: tracker.StateOpen, Limit: listLimit(s.ListLimit)})
	if err != nil {
		return stats, fmt.Errorf("failed to list open items: %w", err)
	}

	for _, item := range items {
		switch Classify(item) {
		case DecisionNotProposal:
			stats.Skipped++
		case DecisionApproved:
			stats.ApprovedOpen++
		case DecisionRejected:
			if err := s.Tracker.CloseItem(ctx, item.Number); err != nil {
				logger.Warn("failed to close rejected item", "number", item.Number, "error", err)
				stats.Failed++
				continue
			}
			logger.Info("closed rejected item", "number", item.Number)
			stats.RejectedClosed++
		default:
			stats.Pending++
		}
	}

	s.Metrics.Count(StageApprovalSync, "approved_open", stats.ApprovedOpen)
	s.Metrics.Count(StageApprovalSync, "rejected_closed", stats.RejectedClosed)
	s.Metrics.Count(StageApprovalSync, "pending", stats.Pending)
	s.Metrics.Count(StageApprovalSync, "skipped", stats.Skipped)
	s.Metrics.Count(StageApprovalSync, "failed", stats.Failed)
	logger.Info("approval sync finished", "approved_open", stats.ApprovedOpen, "rejected_closed", stats.RejectedClosed,
		"pending", stats.Pending, "skipped", stats.Skipped, "failed", stats.Failed)
	telemetry.Summary(s.Out, "feature:issue:sync",
		"approved_open", stats.ApprovedOpen, "rejected_closed", stats.RejectedClosed,
		"pending", stats.Pending, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

func listLimit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}
