package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envAliases maps config keys to the plain environment variable names the
// pipeline has always accepted (GitHub Actions exports these directly).
var envAliases = map[string][]string{
	"github.token":                        {"FEATURE_GITHUB_TOKEN", "GITHUB_TOKEN"},
	"github.repository":                   {"FEATURE_GITHUB_REPOSITORY", "GITHUB_REPOSITORY"},
	"github.api_url":                      {"FEATURE_GITHUB_API_URL", "GITHUB_API_URL"},
	"repo.workspace":                      {"GITHUB_WORKSPACE"},
	"repo.current_branch":                 {"FEATURE_CURRENT_BRANCH", "GITHUB_REF_NAME"},
	"engines":                             {"FEATURE_ENGINES", "FEATURE_AGENT_ENGINE"},
	"llm.api_key":                         {"FEATURE_LLM_API_KEY"},
	"llm.base_url":                        {"FEATURE_LLM_BASE_URL"},
	"llm.model":                           {"FEATURE_LLM_MODEL"},
	"llm.timeout":                         {"FEATURE_LLM_TIMEOUT"},
	"llm.temperature":                     {"FEATURE_LLM_TEMPERATURE"},
	"llm.openai_base_url":                 {"OPENAI_BASE_URL"},
	"llm.anthropic_api_key":               {"ANTHROPIC_API_KEY"},
	"context.max_files":                   {"FEATURE_CONTEXT_MAX_FILES"},
	"context.max_snippet_files":           {"FEATURE_CONTEXT_MAX_SNIPPET_FILES"},
	"context.max_snippet_chars":           {"FEATURE_CONTEXT_MAX_SNIPPET_CHARS"},
	"notifications.feishu.webhook":        {"FEATURE_NOTIFY_FEISHU_WEBHOOK"},
	"notifications.wechat.webhook":        {"FEATURE_NOTIFY_WECHAT_WEBHOOK"},
	"notifications.discord.webhook":       {"FEATURE_NOTIFY_DISCORD_WEBHOOK"},
	"notifications.slack.token":           {"SLACK_BOT_USER_TOKEN"},
	"metrics.pushgateway_url":             {"FEATURE_PUSHGATEWAY_URL"},
}

// Load initializes the configuration from file and environment variables.
func Load(cfgFile string) {
	// explicit .env loading; a missing file is fine
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("FEATURE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, envs := range envAliases {
		args := append([]string{key}, envs...)
		_ = viper.BindEnv(args...)
	}

	SetDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: failed to read config file %s: %v\n", cfgFile, err)
	}
}

// SetDefaults registers the default value of every setting.
func SetDefaults() {
	viper.SetDefault("repo.base_branch", "main")
	viper.SetDefault("repo.remote", "origin")
	viper.SetDefault("require_base_branch", true)
	viper.SetDefault("github.api_url", "https://api.github.com")
	viper.SetDefault("vcs.backend", "github")
	viper.SetDefault("engines", "glm")
	viper.SetDefault("registry.backend", "json")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("context.max_files", 120)
	viper.SetDefault("context.max_snippet_files", 8)
	viper.SetDefault("context.max_snippet_chars", 1500)
	viper.SetDefault("tracker.list_limit", 200)
	viper.SetDefault("git_user_email", "feature-factory@users.noreply.github.com")
	viper.SetDefault("git_user_name", "Feature Factory")
	viper.SetDefault("metrics.job", "featurefactory")
	viper.SetDefault("telemetry.tracing", false)
	viper.SetDefault("debug", false)

	slackEnabled := os.Getenv("SLACK_BOT_USER_TOKEN") != ""
	viper.SetDefault("notifications.slack.enabled", slackEnabled)
	viper.SetDefault("notifications.slack.channel", "#general")
	viper.SetDefault("notifications.events.on_proposals_created", true)
	viper.SetDefault("notifications.events.on_promotion", true)
	viper.SetDefault("notifications.events.on_failure", true)
}
