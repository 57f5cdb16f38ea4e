package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"featurefactory/internal/registry"
	"featurefactory/internal/telemetry"
	"featurefactory/internal/vcs"
)

// Runner performs one generation run and records it on disk and in the registry.
type Runner struct {
	Root         string
	FeaturesRoot string
	BaseBranch   string
	Context      ContextOptions
	VCS          vcs.VCS
	Store        registry.Store
	Generator    *Generator
	Now          func() time.Time
	Out          io.Writer
	Logger       *slog.Logger
}

// Run collects context, generates candidates, writes the run artifacts,
// merges the batch into the registry and moves LATEST.json to this run.
func (r *Runner) Run(ctx context.Context) (latest *Latest, err error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	ctx, span := telemetry.StartSpan(ctx, "discovery.run")
	defer func() { telemetry.EndSpan(span, err) }()

	id := NewRunID(now())
	runDir := id.Dir(r.FeaturesRoot)

	opts := r.Context
	opts.Root = r.Root
	opts.BaseBranch = r.BaseBranch
	input, err := CollectContext(ctx, r.VCS, opts, logger)
	if err != nil {
		return nil, err
	}
	if err := WriteJSON(filepath.Join(runDir, AgentInputFile), input); err != nil {
		return nil, err
	}

	result, err := r.Generator.Generate(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := WriteJSON(filepath.Join(runDir, AgentOutputFile), AgentOutput{Engine: result.Engine, Features: result.Candidates}); err != nil {
		return nil, err
	}

	baseSha, err := r.VCS.HeadSha(ctx, r.BaseBranch)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", r.BaseBranch, err)
	}

	batch := &FeatureBatch{
		Version:     artifactVersion,
		RunID:       id.String(),
		GeneratedAt: id.GeneratedAt(),
		Engine:      result.Engine,
		BaseBranch:  r.BaseBranch,
		BaseSha:     baseSha,
		Features:    result.Candidates,
	}
	featuresPath := filepath.Join(runDir, FeaturesFile)
	summaryPath := filepath.Join(runDir, SummaryFile)
	if err := WriteJSON(featuresPath, batch); err != nil {
		return nil, err
	}
	if err := writeFile(summaryPath, []byte(RenderSummary(id, batch))); err != nil {
		return nil, err
	}

	if _, err := registry.Upsert(ctx, r.Store, result.Candidates, registry.RunMeta{
		GeneratedAt: id.At,
		BaseBranch:  r.BaseBranch,
		BaseSha:     baseSha,
	}); err != nil {
		return nil, fmt.Errorf("failed to update registry: %w", err)
	}

	latest = &Latest{
		Version:      artifactVersion,
		RunID:        batch.RunID,
		GeneratedAt:  batch.GeneratedAt,
		Engine:       batch.Engine,
		BaseBranch:   batch.BaseBranch,
		BaseSha:      baseSha,
		RunDir:       relSlash(r.Root, runDir),
		FeaturesPath: relSlash(r.Root, featuresPath),
		SummaryPath:  relSlash(r.Root, summaryPath),
	}
	if err := WriteJSON(LatestPath(r.FeaturesRoot), latest); err != nil {
		return nil, err
	}

	logger.Info("generation run recorded", "run_id", batch.RunID, "engine", batch.Engine, "features", len(batch.Features))
	telemetry.Summary(r.Out, "feature:generate", "run", batch.RunID, "engine", batch.Engine, "features", len(batch.Features))
	return latest, nil
}
