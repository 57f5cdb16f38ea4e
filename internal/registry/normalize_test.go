package registry

import (
	"strings"
	"testing"

	apperrors "featurefactory/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLegacyRegistry(t *testing.T) {
	legacy := `{
	  "version": 1,
	  "updatedAt": "2025-11-02T08:00:00.000Z",
	  "items": [
	    {
	      "featureId": "FEAT-9",
	      "title": "Legacy",
	      "proposalBranch": "proposal/feat-9",
	      "proposalPrNumber": 41,
	      "proposalPrUrl": "https://example/pull/41",
	      "proposalPrState": "closed",
	      "proposalBranchDeletedAt": "2025-11-01T00:00:00Z",
	      "proposalBranchCleanupError": "boom",
	      "firstSeenAt": "2025-10-30T00:00:00.000Z"
	    },
	    {
	      "featureId": "FEAT-3",
	      "title": "Flexible",
	      "sourceRefs": "docs/a.md",
	      "acceptanceCriteria": null,
	      "proposalIssueNumber": "12",
	      "status": "weird",
	      "approvalStatus": "APPROVED"
	    },
	    { "title": "no id" }
	  ]
	}`

	reg, err := Decode([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, reg.Items, 2)

	assert.Equal(t, "FEAT-3", reg.Items[0].FeatureID)
	flex := reg.Items[0]
	assert.Equal(t, []string{"docs/a.md"}, flex.SourceRefs)
	assert.Equal(t, []string{}, flex.AcceptanceCriteria)
	require.NotNil(t, flex.ProposalIssueNumber)
	assert.Equal(t, 12, *flex.ProposalIssueNumber)
	assert.Equal(t, StatusIssueOpen, flex.Status, "unknown status is derived from linkage")
	assert.Equal(t, ApprovalApproved, flex.ApprovalStatus)

	old := reg.Items[1]
	assert.Equal(t, ApprovalPending, old.ApprovalStatus)
	assert.Equal(t, IssueOpen, old.ProposalIssueState)
	assert.Nil(t, old.ProposalIssueNumber)
	assert.Equal(t, "", old.ProposalIssueURL)
	assert.Equal(t, StatusDiscovered, old.Status)
	assert.Equal(t, old.FirstSeenAt, old.LastSeenAt)
	assert.False(t, old.FirstSeenAt.IsZero())

	out, err := Encode(reg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "proposalBranch")
	assert.NotContains(t, string(out), "proposalPr")
	assert.True(t, strings.HasSuffix(string(out), "}\n"))
}

func TestDecodeEdgeCases(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		reg, err := Decode([]byte("  \n"))
		require.NoError(t, err)
		assert.Equal(t, SchemaVersion, reg.Version)
		assert.Empty(t, reg.Items)
	})

	t.Run("missing items", func(t *testing.T) {
		reg, err := Decode([]byte(`{"version": 1}`))
		require.NoError(t, err)
		assert.NotNil(t, reg.Items)
		assert.Empty(t, reg.Items)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := Decode([]byte(`{"items": [`))
		require.Error(t, err)
		assert.True(t, apperrors.IsMalformed(err))
	})

	t.Run("duplicate ids collapse to last", func(t *testing.T) {
		reg, err := Decode([]byte(`{"items":[{"featureId":"A","title":"one"},{"featureId":"A","title":"two"}]}`))
		require.NoError(t, err)
		require.Len(t, reg.Items, 1)
		assert.Equal(t, "two", reg.Items[0].Title)
	})

	t.Run("bad issue number", func(t *testing.T) {
		reg, err := Decode([]byte(`{"items":[{"featureId":"A","proposalIssueNumber":"abc","devBranch":"dev/a-x"}]}`))
		require.NoError(t, err)
		assert.Nil(t, reg.Items[0].ProposalIssueNumber)
		assert.Equal(t, StatusPromoted, reg.Items[0].Status)
	})
}

func TestNormalizeDoesNotAlias(t *testing.T) {
	n := 4
	reg := &Registry{Items: []FeatureRecord{{FeatureID: "A", ProposalIssueNumber: &n, SourceRefs: []string{"x"}}}}
	out := Normalize(reg)

	*out.Items[0].ProposalIssueNumber = 99
	out.Items[0].SourceRefs[0] = "y"
	assert.Equal(t, 4, n)
	assert.Equal(t, "x", reg.Items[0].SourceRefs[0])
	assert.Equal(t, SchemaVersion, out.Version)
	assert.NotNil(t, Normalize(nil))
}
