package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	ferrors "featurefactory/internal/errors"
	"featurefactory/internal/featuredoc"
	"featurefactory/internal/notify"
	"featurefactory/internal/telemetry"
	"featurefactory/internal/tracker"
	"featurefactory/internal/vcs"
)

// PromotionStats counts what the promotion stage did.
type PromotionStats struct {
	BranchesCreated  int
	DevIssuesCreated int
	DevIssuesReused  int
	ProposalsClosed  int
	Skipped          int
	// Promoted lists the tracking items touched during this run.
	Promoted []notify.Entry
}

// PromotionStage turns approved review items into a development branch plus
// one tracking item, then retires the review item.
type PromotionStage struct {
	Tracker    tracker.Tracker
	VCS        vcs.VCS
	BaseBranch string
	ListLimit  int
	Env
}

// Run promotes every open, approved, not rejected review item. Each step is
// guarded by an existence check so repeated runs converge without
// duplicating branches or tracking items.
func (s *PromotionStage) Run(ctx context.Context) (stats PromotionStats, err error) {
	logger := s.logger(StagePromotion)
	ctx, span := telemetry.StartSpan(ctx, "pipeline.promotion")
	defer func() { telemetry.EndSpan(span, err) }()
	defer s.observe(StagePromotion, time.Now())

	if err := tracker.EnsureLabels(ctx, s.Tracker, []tracker.Label{tracker.LabelFeatureDev}, logger); err != nil {
		return stats, fmt.Errorf("failed to ensure %s label: %w", tracker.LabelFeatureDev.Name, err)
	}

	items, err := s.Tracker.ListItems(ctx, tracker.ListOptions{State: tracker.StateOpen, Limit: listLimit(s.ListLimit)})
	if err != nil {
		return stats, fmt.Errorf("failed to list open items: %w", err)
	}

	baseSha, err := s.VCS.HeadSha(ctx, s.BaseBranch)
	if err != nil {
		return stats, fmt.Errorf("failed to resolve %s: %w", s.BaseBranch, err)
	}

	for _, item := range items {
		if Classify(item) != DecisionApproved {
			stats.Skipped++
			continue
		}
		if err := s.promote(ctx, item, baseSha, &stats); err != nil {
			logger.Warn("skipping item", "number", item.Number, "reason", err)
			stats.Skipped++
		}
	}

	s.Metrics.Count(StagePromotion, "branches_created", stats.BranchesCreated)
	s.Metrics.Count(StagePromotion, "dev_issues_created", stats.DevIssuesCreated)
	s.Metrics.Count(StagePromotion, "dev_issues_reused", stats.DevIssuesReused)
	s.Metrics.Count(StagePromotion, "proposal_closed", stats.ProposalsClosed)
	s.Metrics.Count(StagePromotion, "skipped", stats.Skipped)
	logger.Info("promotion finished", "branches_created", stats.BranchesCreated,
		"dev_issues_created", stats.DevIssuesCreated, "dev_issues_reused", stats.DevIssuesReused,
		"proposal_closed", stats.ProposalsClosed, "skipped", stats.Skipped)
	telemetry.Summary(s.Out, "feature:dev:create",
		"branches_created", stats.BranchesCreated,
		"dev_issues_created", stats.DevIssuesCreated,
		"dev_issues_reused", stats.DevIssuesReused,
		"proposal_closed", stats.ProposalsClosed,
		"skipped", stats.Skipped)
	return stats, nil
}

// promote handles one approved item. A returned error marks the item as
// skipped; nothing after the failing step is attempted.
func (s *PromotionStage) promote(ctx context.Context, item tracker.Item, baseSha string, stats *PromotionStats) (err error) {
	logger := s.logger(StagePromotion)

	featureID := featuredoc.ParseFeatureID(item.Title, item.Body)
	if featureID == "" {
		return ferrors.NewMalformedDataError("review item", "no feature_id in body or title")
	}
	ctx, span := telemetry.StartSpan(ctx, "pipeline.promote", attribute.String("feature_id", featureID))
	defer func() { telemetry.EndSpan(span, err) }()

	featureTitle := featuredoc.ParseFeatureTitle(item.Title, featureID)
	devBranch := featuredoc.DevBranchName(featureID, featureTitle)
	docPath := featuredoc.DocPath(featureID)

	exists, err := s.VCS.BranchExists(ctx, devBranch)
	if err != nil {
		return fmt.Errorf("branch check %s: %w", devBranch, err)
	}
	doc := featuredoc.ExtractProposalMarkdown(item.Body)
	if doc == "" {
		doc = featuredoc.FallbackDoc(featureID, featureTitle)
	}
	msg := "chore(feature): init dev branch for " + featureID
	if !exists {
		if err := s.VCS.CreateBranch(ctx, devBranch, baseSha); err != nil {
			return fmt.Errorf("create branch %s: %w", devBranch, err)
		}
		if _, err := s.VCS.CommitFile(ctx, devBranch, docPath, doc, msg); err != nil {
			return fmt.Errorf("commit %s on %s: %w", docPath, devBranch, err)
		}
		stats.BranchesCreated++
		logger.Info("created dev branch", "feature_id", featureID, "branch", devBranch)
	} else if err := s.ensureDoc(ctx, devBranch, docPath, doc, msg); err != nil {
		return err
	}

	tracking, created, err := s.ensureTracking(ctx, featuredoc.Tracking{
		FeatureID:     featureID,
		FeatureTitle:  featureTitle,
		ProposalIssue: item.Number,
		ProposalURL:   item.URL,
		DevBranch:     devBranch,
		DocPath:       docPath,
	})
	if err != nil {
		return fmt.Errorf("tracking item: %w", err)
	}
	if created {
		stats.DevIssuesCreated++
	} else {
		stats.DevIssuesReused++
	}
	stats.Promoted = append(stats.Promoted, notify.Entry{Title: featuredoc.DevTitle(featureID, featureTitle), URL: tracking.URL})

	if err := s.Tracker.RemoveLabels(ctx, item.Number, []string{tracker.LabelPendingReview.Name}); err != nil {
		logger.Debug("pending-review removal failed", "number", item.Number, "error", err)
	}
	if err := s.Tracker.CloseItem(ctx, item.Number); err != nil {
		logger.Warn("failed to close proposal item", "number", item.Number, "error", err)
		return nil
	}
	stats.ProposalsClosed++
	return nil
}

// ensureDoc commits the feature document to an existing dev branch that
// lacks it, which is the state a failed commit in an earlier run leaves.
func (s *PromotionStage) ensureDoc(ctx context.Context, branch, path, doc, msg string) error {
	_, err := s.VCS.ReadFile(ctx, branch, path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, vcs.ErrNotFound) {
		return fmt.Errorf("read %s on %s: %w", path, branch, err)
	}
	if _, err := s.VCS.CommitFile(ctx, branch, path, doc, msg); err != nil {
		return fmt.Errorf("commit %s on %s: %w", path, branch, err)
	}
	s.logger(StagePromotion).Info("committed missing feature doc", "branch", branch, "path", path)
	return nil
}

// ensureTracking finds the feature-dev item for the feature in any state,
// falling back to an open title match, and creates one only when both miss.
func (s *PromotionStage) ensureTracking(ctx context.Context, t featuredoc.Tracking) (tracker.Item, bool, error) {
	items, err := s.Tracker.ListItems(ctx, tracker.ListOptions{State: tracker.StateAll, Limit: listLimit(s.ListLimit)})
	if err != nil {
		return tracker.Item{}, false, err
	}
	for _, it := range items {
		if !it.HasLabel(tracker.LabelFeatureDev.Name) {
			continue
		}
		if featuredoc.MatchesTracking(it.Title, it.Body, t.FeatureID, t.FeatureTitle) {
			return it, false, nil
		}
	}

	title := featuredoc.DevTitle(t.FeatureID, t.FeatureTitle)
	quick, err := s.Tracker.FindOpenItemByTitle(ctx, title)
	if err != nil {
		return tracker.Item{}, false, err
	}
	if quick != nil && strings.EqualFold(strings.TrimSpace(quick.Title), title) {
		return *quick, false, nil
	}

	url, err := tracker.CreateItemSafe(ctx, s.Tracker, title, featuredoc.TrackingBody(t), []string{tracker.LabelFeatureDev.Name})
	if err != nil {
		return tracker.Item{}, false, err
	}
	created := tracker.Item{URL: url, Title: title, State: tracker.StateOpen}
	if n, ok := featuredoc.IssueNumberFromURL(url); ok {
		created.Number = n
	}
	return created, true, nil
}
