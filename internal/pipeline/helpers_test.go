package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"featurefactory/internal/registry"
	"featurefactory/internal/telemetry"
	"featurefactory/internal/tracker"
)

const testRepo = "acme/widgets"

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testEnv(out *bytes.Buffer) Env {
	return Env{
		Logger:  telemetry.NewLogger(false, "", true),
		Metrics: telemetry.NewMetrics(),
		Out:     out,
		Now:     func() time.Time { return testNow },
	}
}

func newStore(t *testing.T) registry.Store {
	t.Helper()
	return registry.NewFileStore(filepath.Join(t.TempDir(), "registry.json"))
}

func seedRegistry(t *testing.T, store registry.Store, candidates ...registry.Candidate) {
	t.Helper()
	_, err := registry.Upsert(context.Background(), store, candidates, registry.RunMeta{
		GeneratedAt: testNow, BaseBranch: "main", BaseSha: "abc123",
	})
	require.NoError(t, err)
}

func loadRecord(t *testing.T, store registry.Store, id string) *registry.FeatureRecord {
	t.Helper()
	reg, err := store.Load(context.Background())
	require.NoError(t, err)
	rec, ok := reg.Get(id)
	require.True(t, ok, "record %s missing", id)
	return rec
}

func addLabel(t *testing.T, tr *tracker.MockTracker, number int, label string) {
	t.Helper()
	require.NoError(t, tr.AddLabels(context.Background(), number, []string{label}))
}

var retryCandidate = registry.Candidate{
	FeatureID:          "FEAT-1",
	Title:              "Add retry",
	Priority:           "P1",
	SourceRefs:         []string{},
	AcceptanceCriteria: []string{"Retries 3x"},
}
