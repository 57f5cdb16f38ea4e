package vcs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockVCS(t *testing.T) {
	ctx := context.Background()
	m := NewMockVCS("main", map[string]string{"README.md": "# hi", "docs/a.md": "a"})

	var _ VCS = m

	branch, err := m.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	base, err := m.HeadSha(ctx, "main")
	require.NoError(t, err)

	_, err = m.HeadSha(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := m.BranchExists(ctx, "dev/x")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, m.CreateBranch(ctx, "dev/x", base))
	assert.Error(t, m.CreateBranch(ctx, "dev/x", base), "branches are not recreated")

	sha, err := m.CommitFile(ctx, "dev/x", "docs/FEATURE.md", "# feature\n", "init")
	require.NoError(t, err)
	assert.NotEqual(t, base, sha)

	files, err := m.ListFiles(ctx, "dev/x")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "docs/FEATURE.md", "docs/a.md"}, files)

	mainFiles, err := m.ListFiles(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, mainFiles, 2, "commits on a branch do not touch main")

	content, err := m.ReadFile(ctx, "dev/x", "docs/FEATURE.md")
	require.NoError(t, err)
	assert.Equal(t, "# feature\n", content)

	_, err = m.ReadFile(ctx, base, "docs/FEATURE.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockVCSFaults(t *testing.T) {
	ctx := context.Background()
	m := NewMockVCS("main", nil)
	base, _ := m.HeadSha(ctx, "main")

	m.CommitErr = func(branch, path string) error { return errors.New("push rejected") }
	require.NoError(t, m.CreateBranch(ctx, "dev/y", base))
	_, err := m.CommitFile(ctx, "dev/y", "f", "c", "m")
	assert.Error(t, err)

	exists, err := m.BranchExists(ctx, "dev/y")
	require.NoError(t, err)
	assert.True(t, exists, "branch survives a failed commit")

	m.BranchExistsErr = errors.New("offline")
	_, err = m.BranchExists(ctx, "dev/y")
	assert.Error(t, err)
}
