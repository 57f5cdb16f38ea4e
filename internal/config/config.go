// Package config resolves every setting once at startup into an explicit
// Config value that is handed to each component.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved configuration of one pipeline invocation.
type Config struct {
	Mode string

	Root              string
	BaseBranch        string
	Remote            string
	CurrentBranch     string
	RequireBaseBranch bool

	GitHub   GitHubConfig
	VCS      string
	Registry RegistryConfig
	Engines  []string
	LLM      LLMConfig
	Context  ContextConfig

	TrackerListLimit int
	GitUserName      string
	GitUserEmail     string

	Notifications NotificationsConfig
	Metrics       MetricsConfig
	Tracing       bool
	Debug         bool
	LogFile       string
}

// GitHubConfig identifies the tracker/VCS repository.
type GitHubConfig struct {
	Token      string
	Repository string
	APIURL     string
}

// Owner returns the owner half of Repository.
func (g GitHubConfig) Owner() string {
	owner, _, _ := strings.Cut(g.Repository, "/")
	return owner
}

// Repo returns the repository half of Repository.
func (g GitHubConfig) Repo() string {
	_, repo, _ := strings.Cut(g.Repository, "/")
	return repo
}

// RegistryConfig selects the registry backend.
type RegistryConfig struct {
	Backend string
	Path    string
}

// LLMConfig configures candidate-generation engines.
type LLMConfig struct {
	APIKey          string
	AnthropicAPIKey string
	BaseURL         string
	OpenAIBaseURL   string
	Model           string
	Timeout         time.Duration
	Temperature     float64
}

// ContextConfig caps how much repository context is sent to an engine.
type ContextConfig struct {
	MaxFiles        int
	MaxSnippetFiles int
	MaxSnippetChars int
}

// NotificationsConfig configures fire-and-forget delivery.
type NotificationsConfig struct {
	SlackEnabled   bool
	SlackToken     string
	SlackChannel   string
	DiscordWebhook string
	FeishuWebhook  string
	WechatWebhook  string
	Events         map[string]bool
}

// MetricsConfig configures the Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

// FeaturesRoot is the directory holding run artifacts and the registry.
func (c *Config) FeaturesRoot() string {
	return filepath.Join(c.Root, "feature-proposals")
}

// RegistryPath returns the configured registry location, defaulting to
// feature-proposals/state/registry.json (or registry.db for sqlite).
func (c *Config) RegistryPath() string {
	if c.Registry.Path != "" {
		if filepath.IsAbs(c.Registry.Path) {
			return c.Registry.Path
		}
		return filepath.Join(c.Root, c.Registry.Path)
	}
	name := "registry.json"
	if c.Registry.Backend == "sqlite" {
		name = "registry.db"
	}
	return filepath.Join(c.FeaturesRoot(), "state", name)
}

// FromViper builds a Config from the values viper has loaded.
func FromViper() *Config {
	cwd, _ := os.Getwd()
	cfg := &Config{
		Mode:              strings.TrimSpace(viper.GetString("mode")),
		Root:              ResolveRoot(viper.GetString("repo.root"), viper.GetString("repo.workspace"), cwd),
		BaseBranch:        viper.GetString("repo.base_branch"),
		Remote:            viper.GetString("repo.remote"),
		CurrentBranch:     branchFromRef(viper.GetString("repo.current_branch"), os.Getenv("GITHUB_REF")),
		RequireBaseBranch: viper.GetBool("require_base_branch"),
		GitHub: GitHubConfig{
			Token:      strings.TrimSpace(viper.GetString("github.token")),
			Repository: strings.TrimSpace(viper.GetString("github.repository")),
			APIURL:     strings.TrimRight(viper.GetString("github.api_url"), "/"),
		},
		VCS: strings.ToLower(viper.GetString("vcs.backend")),
		Registry: RegistryConfig{
			Backend: strings.ToLower(viper.GetString("registry.backend")),
			Path:    viper.GetString("registry.path"),
		},
		Engines: ParseEngines(viper.Get("engines")),
		LLM: LLMConfig{
			APIKey:          viper.GetString("llm.api_key"),
			AnthropicAPIKey: viper.GetString("llm.anthropic_api_key"),
			BaseURL:         strings.TrimRight(viper.GetString("llm.base_url"), "/"),
			OpenAIBaseURL:   strings.TrimRight(viper.GetString("llm.openai_base_url"), "/"),
			Model:           viper.GetString("llm.model"),
			Timeout:         durationSetting("llm.timeout"),
			Temperature:     viper.GetFloat64("llm.temperature"),
		},
		Context: ContextConfig{
			MaxFiles:        atLeastOne(viper.GetInt("context.max_files")),
			MaxSnippetFiles: atLeastOne(viper.GetInt("context.max_snippet_files")),
			MaxSnippetChars: atLeastOne(viper.GetInt("context.max_snippet_chars")),
		},
		TrackerListLimit: atLeastOne(viper.GetInt("tracker.list_limit")),
		GitUserName:      viper.GetString("git_user_name"),
		GitUserEmail:     viper.GetString("git_user_email"),
		Notifications: NotificationsConfig{
			SlackEnabled:   viper.GetBool("notifications.slack.enabled"),
			SlackToken:     viper.GetString("notifications.slack.token"),
			SlackChannel:   viper.GetString("notifications.slack.channel"),
			DiscordWebhook: viper.GetString("notifications.discord.webhook"),
			FeishuWebhook:  viper.GetString("notifications.feishu.webhook"),
			WechatWebhook:  viper.GetString("notifications.wechat.webhook"),
			Events:         map[string]bool{},
		},
		Metrics: MetricsConfig{
			PushgatewayURL: viper.GetString("metrics.pushgateway_url"),
			Job:            viper.GetString("metrics.job"),
		},
		Tracing: viper.GetBool("telemetry.tracing"),
		Debug:   viper.GetBool("debug"),
		LogFile: viper.GetString("log_file"),
	}
	cfg.Engines, cfg.LLM.Model = engineModelCompat(cfg.Engines, cfg.LLM.Model)
	for _, event := range []string{"on_proposals_created", "on_promotion", "on_failure"} {
		cfg.Notifications.Events[event] = viper.GetBool("notifications.events." + event)
	}
	return cfg
}

// ParseEngines accepts either a list or a comma/space separated string and
// returns the lower-cased engine names in order, without duplicates.
func ParseEngines(raw interface{}) []string {
	var parts []string
	switch v := raw.(type) {
	case nil:
	case string:
		parts = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	case []string:
		parts = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	}

	seen := make(map[string]bool)
	var engines []string
	for _, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		engines = append(engines, name)
	}
	return engines
}

// engineModelCompat treats an engine entry that looks like a GLM model name
// ("glm-4.6") as the glm provider with that model.
func engineModelCompat(engines []string, model string) ([]string, string) {
	out := make([]string, 0, len(engines))
	seen := make(map[string]bool)
	for _, e := range engines {
		if strings.HasPrefix(e, "glm-") {
			if model == "" {
				model = e
			}
			e = "glm"
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out, model
}

// ResolveRoot picks the repository root: an explicit setting wins, then the
// CI workspace, then the nearest ancestor of cwd containing .git, then cwd.
func ResolveRoot(explicit, workspace, cwd string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return absPath(s)
	}
	if s := strings.TrimSpace(workspace); s != "" {
		return absPath(s)
	}
	if root := findGitRoot(cwd); root != "" {
		return root
	}
	return absPath(cwd)
}

func findGitRoot(start string) string {
	if start == "" {
		return ""
	}
	current := absPath(start)
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func branchFromRef(name, ref string) string {
	if s := strings.TrimSpace(name); s != "" {
		return s
	}
	return strings.TrimPrefix(strings.TrimSpace(ref), "refs/heads/")
}

// durationSetting reads key as a duration, accepting bare integers as seconds.
func durationSetting(key string) time.Duration {
	if d := viper.GetDuration(key); d >= time.Second {
		return d
	}
	if s := viper.GetInt(key); s > 0 {
		return time.Duration(s) * time.Second
	}
	return viper.GetDuration(key)
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
