package prompts

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed templates/*.md
var templateFS embed.FS

// List of available prompt templates
const (
	FeatureProposal = "feature_proposal"
)

// OverrideDirEnv names a directory whose <name>.md files replace the embedded templates.
const OverrideDirEnv = "FEATURE_PROMPTS_DIR"

// GetPrompt loads a template and injects {key} variables.
// It checks FEATURE_PROMPTS_DIR first for overrides.
func GetPrompt(name string, vars map[string]string) (string, error) {
	var content []byte

	if overrideDir := os.Getenv(OverrideDirEnv); overrideDir != "" {
		if c, err := os.ReadFile(filepath.Join(overrideDir, name+".md")); err == nil {
			content = c
		}
	}

	if len(content) == 0 {
		c, err := templateFS.ReadFile(path.Join("templates", name+".md"))
		if err != nil {
			return "", fmt.Errorf("failed to read prompt template %s: %w", name, err)
		}
		content = c
	}

	prompt := string(content)
	for k, v := range vars {
		prompt = strings.ReplaceAll(prompt, "{"+k+"}", v)
	}
	return prompt, nil
}
