package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPrompt_Embedded(t *testing.T) {
	t.Setenv(OverrideDirEnv, "")

	got, err := GetPrompt(FeatureProposal, nil)
	require.NoError(t, err)
	assert.Contains(t, got, `"featureId"`)
	assert.Contains(t, got, "acceptanceCriteria")
}

func TestGetPrompt_Override(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FeatureProposal+".md"), []byte("Custom for {team}"), 0o644))
	t.Setenv(OverrideDirEnv, dir)

	got, err := GetPrompt(FeatureProposal, map[string]string{"team": "platform"})
	require.NoError(t, err)
	assert.Equal(t, "Custom for platform", got)
}

func TestGetPrompt_Unknown(t *testing.T) {
	t.Setenv(OverrideDirEnv, "")
	_, err := GetPrompt("nope", nil)
	assert.Error(t, err)
}
