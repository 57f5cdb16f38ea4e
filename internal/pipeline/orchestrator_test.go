package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featurefactory/internal/agent"
	"featurefactory/internal/config"
	"featurefactory/internal/discovery"
	ferrors "featurefactory/internal/errors"
	"featurefactory/internal/notify"
	"featurefactory/internal/registry"
	"featurefactory/internal/tracker"
	"featurefactory/internal/vcs"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingNotifier) Notify(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingNotifier) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		out = append(out, m.Event)
	}
	return out
}

type fixture struct {
	cfg      *config.Config
	tracker  *tracker.MockTracker
	vcs      *vcs.MockVCS
	store    registry.Store
	agent    *agent.MockAgent
	notifier *recordingNotifier
	out      *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Root:              root,
		BaseBranch:        "main",
		RequireBaseBranch: true,
		GitHub:            config.GitHubConfig{Token: "t", Repository: testRepo},
		Engines:           []string{"mock"},
		TrackerListLimit:  50,
	}
	f := &fixture{
		cfg:      cfg,
		tracker:  tracker.NewMockTracker(testRepo),
		vcs:      vcs.NewMockVCS("main", map[string]string{"README.md": "# Widgets", "main.go": "package main"}),
		store:    registry.NewFileStore(cfg.RegistryPath()),
		agent:    agent.NewMockAgent(),
		notifier: &recordingNotifier{},
		out:      &bytes.Buffer{},
	}
	f.agent.SetResponse("```json\n" + `{"features":[
		{"featureId":"FEAT-1","title":"Add retry","priority":"P1","acceptanceCriteria":["Retries 3x"]},
		{"featureId":"FEAT-2","title":"Dark mode"}
	]}` + "\n```")
	return f
}

func (f *fixture) orchestrator() *Orchestrator {
	env := testEnv(f.out)
	return &Orchestrator{
		Config:   f.cfg,
		Tracker:  f.tracker,
		VCS:      f.vcs,
		Store:    f.store,
		Notifier: f.notifier,
		Env:      env,
		Discovery: &discovery.Runner{
			Root:         f.cfg.Root,
			FeaturesRoot: f.cfg.FeaturesRoot(),
			BaseBranch:   f.cfg.BaseBranch,
			Context:      discovery.ContextOptions{MaxFiles: 10, MaxSnippetFiles: 2, MaxSnippetChars: 200},
			VCS:          f.vcs,
			Store:        f.store,
			Generator: &discovery.Generator{
				Engines:  []discovery.Engine{{Name: "mock", Agent: f.agent}},
				Template: "Propose features.",
				Metrics:  env.Metrics,
			},
			Now: env.Now,
			Out: f.out,
		},
	}
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]string{
		"propose": config.ModePropose, "phase1": config.ModePropose, " Discover ": config.ModePropose,
		"sync": config.ModeSync, "PHASE2": config.ModeSync, "approve": config.ModeSync,
	} {
		got, err := ParseMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "deploy"} {
		_, err := ParseMode(raw)
		assert.True(t, ferrors.IsConfig(err), raw)
	}
}

func TestOrchestrator_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orchestrator().Run(ctx, "propose")
	require.NoError(t, err)
	assert.Equal(t, config.ModePropose, res.Mode)
	require.NotNil(t, res.Latest)
	assert.Equal(t, 2, res.Proposal.Created)
	assert.FileExists(t, filepath.Join(f.cfg.FeaturesRoot(), "LATEST.json"))

	proposals := f.tracker.Items("feature-proposal")
	require.Len(t, proposals, 2)
	assert.Equal(t, "[Proposal] FEAT-1 Add retry", proposals[0].Title)
	assert.True(t, proposals[0].HasLabel("pending-review"))
	rec := loadRecord(t, f.store, "FEAT-1")
	assert.Equal(t, registry.IssueOpen, rec.ProposalIssueState)
	assert.Equal(t, registry.StatusIssueOpen, rec.Status)

	// Proposing again reuses the open review items.
	res, err = f.orchestrator().Run(ctx, "phase1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Proposal.Created)
	assert.Equal(t, 2, res.Proposal.Reused)
	assert.Len(t, f.tracker.Items("feature-proposal"), 2)

	addLabel(t, f.tracker, proposals[0].Number, "approved")
	addLabel(t, f.tracker, proposals[1].Number, "rejected")

	res, err = f.orchestrator().Run(ctx, "sync")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sync.ApprovedOpen)
	assert.Equal(t, 1, res.Sync.RejectedClosed)
	assert.Equal(t, 1, res.Promotion.BranchesCreated)
	assert.Equal(t, 1, res.Promotion.DevIssuesCreated)
	assert.Equal(t, 1, res.Promotion.ProposalsClosed)

	assert.Contains(t, f.vcs.Branches(), "dev/feat-1-add-retry")
	doc, err := f.vcs.ReadFile(ctx, "dev/feat-1-add-retry", "docs/feature-proposals/FEAT-1/FEATURE.md")
	require.NoError(t, err)
	assert.Contains(t, doc, "- [ ] Retries 3x")

	// A second sync is a no-op.
	res, err = f.orchestrator().Run(ctx, "approve")
	require.NoError(t, err)
	assert.Zero(t, res.Promotion.BranchesCreated)
	assert.Zero(t, res.Promotion.DevIssuesCreated)
	assert.Len(t, f.tracker.Items("feature-dev"), 1)
	assert.Equal(t, 1, f.vcs.CreateBranchCalls)

	assert.Equal(t, []string{notify.EventProposalsCreated, notify.EventPromotion}, f.notifier.events())
}

func TestOrchestrator_BaseBranchGuard(t *testing.T) {
	f := newFixture(t)
	f.vcs.SetCurrentBranch("feature/x")

	_, err := f.orchestrator().Run(context.Background(), "sync")
	require.Error(t, err)
	assert.True(t, ferrors.IsConfig(err))
	assert.Contains(t, err.Error(), "only allowed on main, current=feature/x")
	assert.Empty(t, f.tracker.Items())
	assert.Equal(t, []string{notify.EventFailure}, f.notifier.events())

	f.cfg.RequireBaseBranch = false
	_, err = f.orchestrator().Run(context.Background(), "sync")
	require.NoError(t, err)
}

func TestOrchestrator_ConfiguredBranchWins(t *testing.T) {
	f := newFixture(t)
	f.cfg.CurrentBranch = "release"
	_, err := f.orchestrator().Run(context.Background(), "sync")
	assert.True(t, ferrors.IsConfig(err))
}

func TestOrchestrator_ValidatesBeforeSideEffects(t *testing.T) {
	f := newFixture(t)
	f.cfg.GitHub.Token = ""

	_, err := f.orchestrator().Run(context.Background(), "propose")
	require.Error(t, err)
	assert.True(t, ferrors.IsConfig(err))
	assert.Empty(t, f.agent.Prompts())
	assert.Empty(t, f.tracker.Items())
	assert.Empty(t, f.notifier.events())
}

func TestOrchestrator_GenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.agent.SetError(errors.New("upstream down"))

	_, err := f.orchestrator().Run(context.Background(), "propose")
	require.Error(t, err)
	assert.True(t, ferrors.IsUpstream(err))
	assert.Empty(t, f.tracker.Items())
	assert.NoFileExists(t, filepath.Join(f.cfg.FeaturesRoot(), "LATEST.json"))
	assert.Equal(t, []string{notify.EventFailure}, f.notifier.events())
}

func TestOrchestrator_WhitespaceIDsNeverReachTracker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.agent.SetResponse(`{"features":[
		{"featureId":"FEAT 1","title":"Add retry"},
		{"featureId":"FEAT 2","title":"Add retry"}
	]}`)

	_, err := f.orchestrator().Run(ctx, "propose")
	require.Error(t, err)
	assert.True(t, ferrors.IsUpstream(err))
	assert.Contains(t, err.Error(), "must not contain whitespace")
	assert.Empty(t, f.tracker.Items())
	reg, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, reg.Items)

	f.agent.SetResponse(`{"features":[
		{"featureId":"FEAT-1","title":"Add retry"},
		{"featureId":"FEAT-2","title":"Add retry"}
	]}`)
	_, err = f.orchestrator().Run(ctx, "propose")
	require.NoError(t, err)
	for _, it := range f.tracker.Items("feature-proposal") {
		addLabel(t, f.tracker, it.Number, "approved")
	}

	res, err := f.orchestrator().Run(ctx, "sync")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Promotion.BranchesCreated)
	assert.Equal(t, 2, res.Promotion.DevIssuesCreated)
	assert.Zero(t, res.Promotion.DevIssuesReused)
	require.Len(t, res.Promotion.Promoted, 2)
	assert.NotEqual(t, res.Promotion.Promoted[0].URL, res.Promotion.Promoted[1].URL)

	dev := f.tracker.Items("feature-dev")
	require.Len(t, dev, 2)
	assert.Equal(t, "[Dev] FEAT-1 Add retry", dev[0].Title)
	assert.Equal(t, "[Dev] FEAT-2 Add retry", dev[1].Title)
	assert.Contains(t, f.vcs.Branches(), "dev/feat-1-add-retry")
	assert.Contains(t, f.vcs.Branches(), "dev/feat-2-add-retry")
}
