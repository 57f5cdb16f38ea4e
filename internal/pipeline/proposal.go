package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"featurefactory/internal/featuredoc"
	"featurefactory/internal/notify"
	"featurefactory/internal/registry"
	"featurefactory/internal/telemetry"
	"featurefactory/internal/tracker"
)

// ProposalStats counts what the proposal stage did.
type ProposalStats struct {
	Created int
	Reused  int
	// Skipped counts candidates with no registry record.
	Skipped int
	Failed  int
	// New lists the review items opened during this run.
	New []notify.Entry
}

// ProposalStage turns registered candidates into open review items.
type ProposalStage struct {
	Tracker tracker.Tracker
	Store   registry.Store
	Env
}

// Run ensures the review labels, then links every candidate of batch that is
// present in the registry to exactly one open review item, creating it only
// when neither the registry nor a title search finds one. Linkage is saved
// even when individual candidates fail.
func (s *ProposalStage) Run(ctx context.Context, batch Batch) (stats ProposalStats, err error) {
	logger := s.logger(StageProposal)
	ctx, span := telemetry.StartSpan(ctx, "pipeline.proposal", attribute.Int("candidates", len(batch.Candidates)))
	defer func() { telemetry.EndSpan(span, err) }()
	defer s.observe(StageProposal, time.Now())

	if len(batch.Candidates) == 0 {
		logger.Info("no features")
		fmt.Fprintln(outOrDiscard(s.Out), "[feature:issue:create] no features.")
		return stats, nil
	}

	if err := tracker.EnsureLabels(ctx, s.Tracker, tracker.ReviewLabels, logger); err != nil {
		return stats, fmt.Errorf("failed to ensure review labels: %w", err)
	}

	reg, err := s.Store.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load registry: %w", err)
	}

	for _, c := range batch.Candidates {
		rec, ok := reg.Get(c.FeatureID)
		if !ok {
			logger.Warn("candidate not in registry", "feature_id", c.FeatureID)
			stats.Skipped++
			continue
		}
		if rec.HasOpenIssue() {
			stats.Reused++
			continue
		}

		title := featuredoc.ProposalTitle(c.FeatureID, c.Title)
		existing, err := s.Tracker.FindOpenItemByTitle(ctx, title)
		if err != nil {
			logger.Warn("title search failed", "feature_id", c.FeatureID, "error", err)
			stats.Failed++
			continue
		}
		if existing != nil {
			number := existing.Number
			rec.LinkIssue(&number, existing.URL, s.now())
			stats.Reused++
			logger.Info("relinked review item", "feature_id", c.FeatureID, "number", number)
			continue
		}

		body := featuredoc.ProposalBody(c, batch.BaseBranch, batch.BaseSha)
		url, err := tracker.CreateItemSafe(ctx, s.Tracker, title, body,
			[]string{tracker.LabelFeatureProposal.Name, tracker.LabelPendingReview.Name})
		if err != nil {
			logger.Warn("failed to create review item", "feature_id", c.FeatureID, "error", err)
			stats.Failed++
			continue
		}
		var number *int
		if n, ok := featuredoc.IssueNumberFromURL(url); ok {
			number = &n
		} else {
			logger.Warn("created item url has no issue number", "feature_id", c.FeatureID, "url", url)
		}
		rec.LinkIssue(number, url, s.now())
		stats.Created++
		stats.New = append(stats.New, notify.Entry{Priority: c.Priority, Title: title, URL: url})
		logger.Info("created review item", "feature_id", c.FeatureID, "url", url)
	}

	if err := s.Store.Save(ctx, reg); err != nil {
		return stats, fmt.Errorf("failed to save registry: %w", err)
	}

	s.Metrics.Count(StageProposal, "created", stats.Created)
	s.Metrics.Count(StageProposal, "reused", stats.Reused)
	s.Metrics.Count(StageProposal, "skipped", stats.Skipped)
	s.Metrics.Count(StageProposal, "failed", stats.Failed)
	logger.Info("proposal stage finished", "created", stats.Created, "reused", stats.Reused, "skipped", stats.Skipped, "failed", stats.Failed)
	telemetry.Summary(s.Out, "feature:issue:create",
		"created", stats.Created, "reused", stats.Reused, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}
