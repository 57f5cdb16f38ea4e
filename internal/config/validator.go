package config

import (
	"fmt"
	"strings"

	apperrors "featurefactory/internal/errors"

	"github.com/spf13/viper"
)

// Pipeline modes.
const (
	ModePropose = "propose"
	ModeSync    = "sync"
)

// KnownEngines lists every candidate-generation engine the agent factory can build.
var KnownEngines = []string{"glm", "deepseek", "openai", "openrouter", "ollama", "anthropic", "mock"}

// ValidateConfig checks the range and enumeration settings held by viper.
func ValidateConfig() error {
	var errs []string

	if viper.IsSet("llm.timeout") {
		if d := durationSetting("llm.timeout"); d <= 0 {
			errs = append(errs, "llm.timeout must be positive")
		}
	}
	if t := viper.GetFloat64("llm.temperature"); t < 0 || t > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}

	for _, key := range []string{"context.max_files", "context.max_snippet_files", "context.max_snippet_chars", "tracker.list_limit"} {
		if viper.IsSet(key) && viper.GetInt(key) <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive", key))
		}
	}

	if backend := viper.GetString("vcs.backend"); backend != "" && !oneOf(backend, "github", "git") {
		errs = append(errs, fmt.Sprintf("vcs.backend must be one of github, git (got %q)", backend))
	}
	if backend := viper.GetString("registry.backend"); backend != "" && !oneOf(backend, "json", "sqlite") {
		errs = append(errs, fmt.Sprintf("registry.backend must be one of json, sqlite (got %q)", backend))
	}

	for _, engine := range ParseEngines(viper.Get("engines")) {
		if strings.HasPrefix(engine, "glm-") {
			continue
		}
		if !oneOf(engine, KnownEngines...) {
			errs = append(errs, fmt.Sprintf("unsupported engine %q (supported: %s)", engine, strings.Join(KnownEngines, ", ")))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Validate reports every required setting missing for mode as a ConfigError.
func (c *Config) Validate(mode string) error {
	var missing []string

	if c.GitHub.Token == "" {
		missing = append(missing, "github.token")
	}
	if c.GitHub.Repository == "" {
		missing = append(missing, "github.repository")
	} else if c.GitHub.Owner() == "" || c.GitHub.Repo() == "" {
		return apperrors.NewConfigError(fmt.Sprintf("github.repository must be owner/repo (got %q)", c.GitHub.Repository), "github.repository")
	}
	if c.BaseBranch == "" {
		missing = append(missing, "repo.base_branch")
	}

	switch mode {
	case ModePropose:
		if len(c.Engines) == 0 {
			missing = append(missing, "engines")
		}
		if c.needsAPIKey() && c.LLM.APIKey == "" {
			missing = append(missing, "llm.api_key")
		}
	case ModeSync:
	default:
		return apperrors.NewConfigError(fmt.Sprintf("unsupported mode %q (expected propose or sync)", mode), "mode")
	}

	if len(missing) > 0 {
		return apperrors.NewConfigError("", missing...)
	}
	return nil
}

// needsAPIKey reports whether any configured engine requires the shared key.
func (c *Config) needsAPIKey() bool {
	for _, e := range c.Engines {
		switch e {
		case "mock", "ollama":
		case "anthropic":
			if c.LLM.AnthropicAPIKey == "" {
				return true
			}
		default:
			return true
		}
	}
	return false
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if strings.EqualFold(v, o) {
			return true
		}
	}
	return false
}
