package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"featurefactory/internal/config"
	"featurefactory/internal/discovery"
	ferrors "featurefactory/internal/errors"
	"featurefactory/internal/notify"
	"featurefactory/internal/registry"
	"featurefactory/internal/telemetry"
	"featurefactory/internal/tracker"
	"featurefactory/internal/vcs"
)

// ParseMode normalizes a mode argument, accepting the legacy phase aliases.
func ParseMode(raw string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case "":
		return "", ferrors.NewConfigError("missing mode, expected propose or sync", "mode")
	case config.ModePropose, "phase1", "discover":
		return config.ModePropose, nil
	case config.ModeSync, "phase2", "approve":
		return config.ModeSync, nil
	}
	return "", ferrors.NewConfigError(fmt.Sprintf("unsupported mode=%s, supported: propose|sync", mode), "mode")
}

// Discoverer runs candidate generation and returns the new LATEST pointer.
type Discoverer interface {
	Run(ctx context.Context) (*discovery.Latest, error)
}

// Orchestrator sequences the stages for one invocation. It holds no state
// of its own between runs.
type Orchestrator struct {
	Config    *config.Config
	Tracker   tracker.Tracker
	VCS       vcs.VCS
	Store     registry.Store
	Discovery Discoverer
	Notifier  Notifier
	Env
}

// Result summarizes one invocation.
type Result struct {
	Mode      string
	Latest    *discovery.Latest
	Proposal  ProposalStats
	Sync      SyncStats
	Promotion PromotionStats
}

// Run executes mode. Configuration is validated before anything touches the
// tracker or repository.
func (o *Orchestrator) Run(ctx context.Context, rawMode string) (res *Result, err error) {
	mode, err := ParseMode(rawMode)
	if err != nil {
		return nil, err
	}
	if err := o.Config.Validate(mode); err != nil {
		return nil, err
	}
	logger := o.logger("orchestrator")

	ctx, span := telemetry.StartSpan(ctx, "pipeline.run", attribute.String("mode", mode))
	defer func() {
		telemetry.EndSpan(span, err)
		o.Metrics.RunFinished(mode, err)
		if err != nil {
			o.notify(ctx, notify.Message{
				Event: notify.EventFailure,
				Title: fmt.Sprintf("Feature pipeline %s failed", mode),
				Text:  err.Error(),
			})
		}
		if pushErr := o.Metrics.Push(ctx, o.Config.Metrics.PushgatewayURL, o.Config.Metrics.Job); pushErr != nil {
			logger.Warn("metrics push failed", "error", pushErr)
		}
	}()

	if err := o.ensureBaseBranch(ctx); err != nil {
		return nil, err
	}

	res = &Result{Mode: mode}
	logger.Info("pipeline started", "mode", mode, "repository", o.Config.GitHub.Repository)
	switch mode {
	case config.ModePropose:
		err = o.propose(ctx, res)
	case config.ModeSync:
		err = o.sync(ctx, res)
	}
	if err != nil {
		return res, err
	}
	logger.Info("pipeline finished", "mode", mode)
	return res, nil
}

func (o *Orchestrator) ensureBaseBranch(ctx context.Context) error {
	if !o.Config.RequireBaseBranch {
		return nil
	}
	current := o.Config.CurrentBranch
	if current == "" {
		var err error
		if current, err = o.VCS.CurrentBranch(ctx); err != nil {
			return fmt.Errorf("failed to resolve current branch: %w", err)
		}
	}
	if current != o.Config.BaseBranch {
		if current == "" {
			current = "unknown"
		}
		return ferrors.NewConfigError(
			fmt.Sprintf("feature pipeline only allowed on %s, current=%s", o.Config.BaseBranch, current),
			"repo.current_branch")
	}
	return nil
}

func (o *Orchestrator) propose(ctx context.Context, res *Result) error {
	latest, err := o.Discovery.Run(ctx)
	if err != nil {
		return err
	}
	res.Latest = latest

	batch, err := discovery.LoadBatch(o.Config.Root, latest)
	if err != nil {
		return err
	}

	stage := &ProposalStage{Tracker: o.Tracker, Store: o.Store, Env: o.Env}
	stats, err := stage.Run(ctx, BatchFromFeatures(batch))
	res.Proposal = stats
	if err != nil {
		return err
	}
	if len(stats.New) > 0 {
		o.notify(ctx, notify.Message{
			Event:   notify.EventProposalsCreated,
			Title:   "New Feature Proposals Generated",
			Entries: stats.New,
		})
	}
	return nil
}

func (o *Orchestrator) sync(ctx context.Context, res *Result) error {
	syncStage := &ApprovalSyncStage{Tracker: o.Tracker, ListLimit: o.Config.TrackerListLimit, Env: o.Env}
	syncStats, err := syncStage.Run(ctx)
	res.Sync = syncStats
	if err != nil {
		return err
	}

	promotion := &PromotionStage{
		Tracker:    o.Tracker,
		VCS:        o.VCS,
		BaseBranch: o.Config.BaseBranch,
		ListLimit:  o.Config.TrackerListLimit,
		Env:        o.Env,
	}
	promoStats, err := promotion.Run(ctx)
	res.Promotion = promoStats
	if err != nil {
		return err
	}
	if len(promoStats.Promoted) > 0 {
		o.notify(ctx, notify.Message{
			Event:   notify.EventPromotion,
			Title:   "Approved Features Promoted",
			Entries: promoStats.Promoted,
		})
	}
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, msg notify.Message) {
	if o.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := o.Notifier.Notify(ctx, msg); err != nil {
		o.logger("orchestrator").Warn("notification failed", "event", msg.Event, "error", err)
	}
}
