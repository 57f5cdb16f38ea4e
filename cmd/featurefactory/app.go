package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"featurefactory/internal/agent"
	"featurefactory/internal/agent/prompts"
	"featurefactory/internal/config"
	"featurefactory/internal/discovery"
	ferrors "featurefactory/internal/errors"
	"featurefactory/internal/git"
	"featurefactory/internal/github"
	"featurefactory/internal/notify"
	"featurefactory/internal/pipeline"
	"featurefactory/internal/registry"
	"featurefactory/internal/telemetry"
	"featurefactory/internal/tracker"
	"featurefactory/internal/vcs"
)

var initTracing = telemetry.InitTracing

// app holds everything one invocation wires together.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	orchestrator *pipeline.Orchestrator
	closers      []func(context.Context) error
}

func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
}

// newApp builds the orchestrator for mode. Engines are only constructed
// when mode needs them.
func newApp(cfg *config.Config, mode string, out io.Writer) (*app, error) {
	logger := telemetry.NewLogger(cfg.Debug, cfg.LogFile, false)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, metrics: telemetry.NewMetrics()}

	shutdown, err := initTracing(cfg.Tracing, os.Stderr)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	gh, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Repository, cfg.GitHub.APIURL)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	gh.Branch = cfg.CurrentBranch
	gh.Logger = telemetry.Component(logger, "github")

	repo, err := newVCS(cfg, gh)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	store, err := registry.Open(cfg.Registry.Backend, cfg.RegistryPath())
	if err != nil {
		a.Close(context.Background())
		return nil, ferrors.NewConfigError(err.Error(), "registry.backend")
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	env := pipeline.Env{Logger: logger, Metrics: a.metrics, Out: out}
	o := &pipeline.Orchestrator{
		Config:   cfg,
		Tracker:  tracker.Tracker(gh),
		VCS:      repo,
		Store:    store,
		Notifier: notify.NewManager(cfg.Notifications, logger),
		Env:      env,
	}

	if mode == config.ModePropose {
		gen, err := newGenerator(cfg, logger, a.metrics)
		if err != nil {
			a.Close(context.Background())
			return nil, err
		}
		o.Discovery = &discovery.Runner{
			Root:         cfg.Root,
			FeaturesRoot: cfg.FeaturesRoot(),
			BaseBranch:   cfg.BaseBranch,
			Context: discovery.ContextOptions{
				MaxFiles:        cfg.Context.MaxFiles,
				MaxSnippetFiles: cfg.Context.MaxSnippetFiles,
				MaxSnippetChars: cfg.Context.MaxSnippetChars,
			},
			VCS:       repo,
			Store:     store,
			Generator: gen,
			Out:       out,
			Logger:    telemetry.Component(logger, "discovery"),
		}
	}

	a.orchestrator = o
	return a, nil
}

func newVCS(cfg *config.Config, gh *github.Client) (vcs.VCS, error) {
	switch cfg.VCS {
	case "", "github":
		return gh, nil
	case "git":
		c := git.NewClient(cfg.Root, cfg.Remote)
		c.UserName = cfg.GitUserName
		c.UserEmail = cfg.GitUserEmail
		return c, nil
	}
	return nil, ferrors.NewConfigError(fmt.Sprintf("unsupported vcs backend %q", cfg.VCS), "vcs.backend")
}

func newGenerator(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*discovery.Generator, error) {
	template, err := prompts.GetPrompt(prompts.FeatureProposal, nil)
	if err != nil {
		return nil, err
	}
	gen := &discovery.Generator{
		Template: template,
		Timeout:  cfg.LLM.Timeout,
		Metrics:  metrics,
		Logger:   telemetry.Component(logger, "generator"),
	}
	for _, name := range cfg.Engines {
		a, err := agent.NewAgent(name, cfg.LLM, logger)
		if err != nil {
			return nil, ferrors.NewConfigError(err.Error(), "engines")
		}
		gen.Engines = append(gen.Engines, discovery.Engine{Name: name, Agent: a})
	}
	return gen, nil
}
