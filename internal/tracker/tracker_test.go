package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemHasLabel(t *testing.T) {
	it := Item{Labels: []string{"Feature-Proposal", "approved"}}
	assert.True(t, it.HasLabel("feature-proposal"))
	assert.True(t, it.HasLabel("APPROVED"))
	assert.False(t, it.HasLabel("rejected"))
}

func TestNormalizeLabels(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeLabels([]string{" A", "", "b", "a "}))
	assert.Nil(t, NormalizeLabels(nil))
}

func TestEnsureLabels(t *testing.T) {
	ctx := context.Background()

	t.Run("creates missing", func(t *testing.T) {
		m := NewMockTracker("acme/widgets")
		require.NoError(t, EnsureLabels(ctx, m, ReviewLabels, nil))
		for _, l := range ReviewLabels {
			assert.True(t, m.HasLabelDefinition(l.Name))
		}
	})

	t.Run("creation failure is not fatal", func(t *testing.T) {
		m := NewMockTracker("acme/widgets")
		m.CreateLabelFail["approved"] = true
		assert.NoError(t, EnsureLabels(ctx, m, ReviewLabels, nil))
		assert.False(t, m.HasLabelDefinition("approved"))
	})

	t.Run("unreachable tracker aborts", func(t *testing.T) {
		m := NewMockTracker("acme/widgets")
		m.EnsureLabelErr = errors.New("connection refused")
		assert.Error(t, EnsureLabels(ctx, m, ReviewLabels, nil))
	})
}

func TestCreateItemSafe(t *testing.T) {
	ctx := context.Background()

	t.Run("first attempt", func(t *testing.T) {
		m := NewMockTracker("acme/widgets")
		url, err := CreateItemSafe(ctx, m, "t", "b", []string{"Feature-Proposal", "pending-review"})
		require.NoError(t, err)
		assert.Equal(t, "https://github.com/acme/widgets/issues/1", url)
		it, _ := m.Item(1)
		assert.Equal(t, []string{"feature-proposal", "pending-review"}, it.Labels)
		assert.Equal(t, 1, m.CreateCalls)
	})

	t.Run("retries without labels", func(t *testing.T) {
		m := NewMockTracker("acme/widgets")
		m.CreateErr = func(title string, labels []string) error {
			if len(labels) > 0 {
				return errors.New("label does not exist")
			}
			return nil
		}
		url, err := CreateItemSafe(ctx, m, "t", "b", []string{"feature-proposal"})
		require.NoError(t, err)
		assert.NotEmpty(t, url)
		assert.Equal(t, 2, m.CreateCalls)
		it, _ := m.Item(1)
		assert.Empty(t, it.Labels)
	})

	t.Run("both attempts fail", func(t *testing.T) {
		m := NewMockTracker("acme/widgets")
		m.CreateErr = func(string, []string) error { return errors.New("503") }
		_, err := CreateItemSafe(ctx, m, "t", "b", []string{"x"})
		assert.Error(t, err)
		assert.Equal(t, 2, m.CreateCalls)
	})
}

func TestMockTrackerListing(t *testing.T) {
	ctx := context.Background()
	m := NewMockTracker("acme/widgets")
	open := m.Seed("[Proposal] A a", "", StateOpen, "feature-proposal")
	m.Seed("[Proposal] B b", "", StateClosed, "feature-proposal")
	m.Seed("[Dev] A a", "", StateOpen, "feature-dev")

	items, err := m.ListItems(ctx, ListOptions{State: StateOpen})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = m.ListItems(ctx, ListOptions{State: StateAll, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	found, err := m.FindOpenItemByTitle(ctx, "[Proposal] A a")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, open, found.Number)

	missing, err := m.FindOpenItemByTitle(ctx, "[Proposal] B b")
	require.NoError(t, err)
	assert.Nil(t, missing, "closed items are not matched")

	require.NoError(t, m.RemoveLabels(ctx, open, []string{"pending-review", "FEATURE-PROPOSAL"}))
	it, _ := m.Item(open)
	assert.Empty(t, it.Labels)

	require.NoError(t, m.CloseItem(ctx, open))
	it, _ = m.Item(open)
	assert.Equal(t, StateClosed, it.State)
	assert.Error(t, m.CloseItem(ctx, 99))
}
