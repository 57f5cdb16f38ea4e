package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featurefactory/internal/tracker"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   Decision
	}{
		{"not a proposal", []string{"bug", "approved"}, DecisionNotProposal},
		{"pending", []string{"feature-proposal", "pending-review"}, DecisionPending},
		{"no decision labels", []string{"feature-proposal"}, DecisionPending},
		{"approved", []string{"feature-proposal", "approved"}, DecisionApproved},
		{"rejected", []string{"feature-proposal", "rejected"}, DecisionRejected},
		{"rejected wins", []string{"feature-proposal", "approved", "rejected"}, DecisionRejected},
		{"case insensitive", []string{"Feature-Proposal", "APPROVED"}, DecisionApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tracker.Item{Labels: tt.labels}))
		})
	}
}

func TestApprovalSyncStage_Run(t *testing.T) {
	var out bytes.Buffer
	tr := tracker.NewMockTracker(testRepo)
	approved := tr.Seed("[Proposal] A-1 One", "", tracker.StateOpen, "feature-proposal", "approved")
	rejected := tr.Seed("[Proposal] A-2 Two", "", tracker.StateOpen, "feature-proposal", "rejected")
	both := tr.Seed("[Proposal] A-3 Three", "", tracker.StateOpen, "feature-proposal", "approved", "rejected")
	pending := tr.Seed("[Proposal] A-4 Four", "", tracker.StateOpen, "feature-proposal", "pending-review")
	bug := tr.Seed("Crash on start", "", tracker.StateOpen, "bug", "rejected")
	tr.Seed("[Proposal] A-5 Five", "", tracker.StateClosed, "feature-proposal", "rejected")

	stage := &ApprovalSyncStage{Tracker: tr, Env: testEnv(&out)}
	stats, err := stage.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SyncStats{ApprovedOpen: 1, RejectedClosed: 2, Pending: 1, Skipped: 1}, stats)
	assert.Equal(t, "[feature:issue:sync] approved_open=1 rejected_closed=2 pending=1 skipped=1 failed=0\n", out.String())

	state := func(n int) string {
		it, ok := tr.Item(n)
		require.True(t, ok)
		return it.State
	}
	assert.Equal(t, tracker.StateOpen, state(approved))
	assert.Equal(t, tracker.StateClosed, state(rejected))
	assert.Equal(t, tracker.StateClosed, state(both))
	assert.Equal(t, tracker.StateOpen, state(pending))
	assert.Equal(t, tracker.StateOpen, state(bug))
}

func TestApprovalSyncStage_CloseFailureIsPerItem(t *testing.T) {
	tr := tracker.NewMockTracker(testRepo)
	first := tr.Seed("[Proposal] A-1 One", "", tracker.StateOpen, "feature-proposal", "rejected")
	tr.Seed("[Proposal] A-2 Two", "", tracker.StateOpen, "feature-proposal", "rejected")
	tr.CloseErr = func(n int) error {
		if n == first {
			return errors.New("timeout")
		}
		return nil
	}

	stats, err := (&ApprovalSyncStage{Tracker: tr, Env: testEnv(&bytes.Buffer{})}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RejectedClosed)
	assert.Equal(t, 1, stats.Failed)
}

func TestApprovalSyncStage_ListFailureAborts(t *testing.T) {
	tr := tracker.NewMockTracker(testRepo)
	tr.ListErr = errors.New("503")
	_, err := (&ApprovalSyncStage{Tracker: tr, Env: testEnv(&bytes.Buffer{})}).Run(context.Background())
	require.Error(t, err)
}

func TestApprovalSyncStage_RespectsListLimit(t *testing.T) {
	tr := tracker.NewMockTracker(testRepo)
	for i := 0; i < 5; i++ {
		tr.Seed("[Proposal] X", "", tracker.StateOpen, "feature-proposal")
	}
	stats, err := (&ApprovalSyncStage{Tracker: tr, ListLimit: 3, Env: testEnv(&bytes.Buffer{})}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pending)
}
