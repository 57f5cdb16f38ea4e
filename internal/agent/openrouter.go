package agent

import (
	"os"
	"time"
)

const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OpenRouterModel   = "openai/gpt-4.1-mini"
)

// NewOpenRouterClient creates an OpenRouter engine.
func NewOpenRouterClient(apiKey, model, baseURL string, temperature float64, timeout time.Duration) *ChatClient {
	if model == "" {
		model = OpenRouterModel
	}
	if baseURL == "" {
		baseURL = OpenRouterBaseURL
	}
	cfg := HTTPClientConfig{
		Provider:    "openrouter",
		APIKey:      apiKey,
		Model:       model,
		APIURL:      ChatCompletionsURL(baseURL),
		Temperature: temperature,
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/featurefactory/featurefactory",
			"X-Title":      "Feature Factory",
		},
	}
	// Keep CI runs inside small credit budgets.
	if os.Getenv("CI") == "true" {
		cfg.MaxTokens = 4096
	}
	return newChatClient(cfg, timeout)
}
