package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"featurefactory/internal/agent"
	ferrors "featurefactory/internal/errors"
	"featurefactory/internal/registry"
	"featurefactory/internal/telemetry"
)

// Engine is one configured candidate source.
type Engine struct {
	Name  string
	Agent agent.Agent
}

// Attempt records how one engine fared during a run.
type Attempt struct {
	Engine string `json:"engine"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Result is the batch produced by the first engine that succeeded.
type Result struct {
	Engine     string
	Model      string
	Candidates []registry.Candidate
	Attempts   []Attempt
}

// Generator tries engines in order until one returns a valid batch.
type Generator struct {
	Engines  []Engine
	Template string
	// Timeout bounds each engine call; an expired call fails that engine.
	Timeout time.Duration
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Generate renders the prompt for input and returns the first valid batch.
// A failing engine's output is discarded as a whole. When every engine fails
// the error is an UpstreamGenerationError listing each attempt.
func (g *Generator) Generate(ctx context.Context, input *RepoContext) (*Result, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(g.Engines) == 0 {
		return nil, ferrors.NewConfigError("no candidate engines configured", "engines")
	}

	prompt, err := BuildPrompt(g.Template, input)
	if err != nil {
		return nil, err
	}
	logger.Debug("engine prompt ready", "chars", len(prompt), "tokens_estimate", agent.EstimateTokenCount(prompt))

	var attempts []Attempt
	for _, engine := range g.Engines {
		candidates, err := g.try(ctx, engine, prompt)
		g.Metrics.EngineAttempt(engine.Name, err == nil)
		if err != nil {
			logger.Warn("engine failed", "engine", engine.Name, "error", err)
			attempts = append(attempts, Attempt{Engine: engine.Name, Error: err.Error()})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		attempts = append(attempts, Attempt{Engine: engine.Name, OK: true})
		logger.Info("engine succeeded", "engine", engine.Name, "model", engine.Agent.Model(), "features", len(candidates))
		return &Result{
			Engine:     engine.Name,
			Model:      engine.Agent.Model(),
			Candidates: candidates,
			Attempts:   attempts,
		}, nil
	}

	summary, _ := json.Marshal(attempts)
	return nil, ferrors.NewUpstreamGenerationError("all", fmt.Errorf("all engines failed: %s", summary))
}

func (g *Generator) try(ctx context.Context, engine Engine, prompt string) (candidates []registry.Candidate, err error) {
	ctx, span := telemetry.StartSpan(ctx, "discovery.engine",
		attribute.String("engine", engine.Name),
		attribute.String("model", engine.Agent.Model()))
	defer func() { telemetry.EndSpan(span, err) }()

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	text, err := engine.Agent.Send(ctx, prompt)
	if err != nil {
		return nil, ferrors.NewUpstreamGenerationError(engine.Name, err)
	}
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return nil, ferrors.NewUpstreamGenerationError(engine.Name, err)
	}
	candidates, err = ParseCandidates(raw)
	if err != nil {
		return nil, ferrors.NewUpstreamGenerationError(engine.Name, err)
	}
	return candidates, nil
}
