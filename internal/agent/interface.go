package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"featurefactory/internal/config"
)

// Agent is a candidate-generation engine: one prompt in, one text completion out.
type Agent interface {
	// Send sends a prompt to the engine and returns the generated text.
	Send(ctx context.Context, prompt string) (string, error)

	// Model reports the model the engine resolved to, for logs and artifacts.
	Model() string
}

// NewAgent is a factory function that returns an Agent for the given engine name.
// Names of the form "glm-<model>" select the glm provider with that model.
func NewAgent(engine string, cfg config.LLMConfig, logger *slog.Logger) (Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(engine))
	model := cfg.Model
	if strings.HasPrefix(provider, "glm-") {
		model = provider
		provider = "glm"
	}

	// Correct model name for OpenRouter if needed
	if provider == "openrouter" {
		if corrected := openRouterModel(model); corrected != model {
			logger.Debug("corrected openrouter model", "from", model, "to", corrected)
			model = corrected
		}
	}

	switch provider {
	case "glm":
		return NewGLMClient(cfg.APIKey, model, cfg.BaseURL, cfg.Temperature, cfg.Timeout).WithLogger(logger), nil
	case "deepseek":
		return NewDeepSeekClient(cfg.APIKey, model, cfg.BaseURL, cfg.Temperature, cfg.Timeout).WithLogger(logger), nil
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = cfg.OpenAIBaseURL
		}
		return NewOpenAIClient(cfg.APIKey, model, baseURL, cfg.Temperature, cfg.Timeout).WithLogger(logger), nil
	case "openrouter":
		return NewOpenRouterClient(cfg.APIKey, model, cfg.BaseURL, cfg.Temperature, cfg.Timeout).WithLogger(logger), nil
	case "ollama":
		return NewOllamaClient(cfg.BaseURL, model, cfg.Temperature, cfg.Timeout).WithLogger(logger), nil
	case "anthropic":
		key := cfg.AnthropicAPIKey
		if key == "" {
			key = cfg.APIKey
		}
		return NewAnthropicClient(key, model, cfg.Temperature).WithLogger(logger), nil
	case "mock":
		return NewMockAgent(), nil
	default:
		return nil, fmt.Errorf("unsupported engine: %s", engine)
	}
}

func openRouterModel(model string) string {
	if model == "" || strings.Contains(model, "/") {
		return model
	}
	switch {
	case strings.HasPrefix(model, "gemini-"):
		return "google/" + model
	case strings.HasPrefix(model, "gpt-"):
		return "openai/" + model
	case strings.HasPrefix(model, "claude-"):
		return "anthropic/" + model
	case strings.HasPrefix(model, "llama-"):
		return "meta-llama/" + model
	case strings.HasPrefix(model, "mistral-"), strings.HasPrefix(model, "mixtral-"):
		return "mistralai/" + model
	}
	return model
}
