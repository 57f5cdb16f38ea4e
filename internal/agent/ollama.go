package agent

import (
	"strings"
	"time"
)

const (
	OllamaBaseURL = "http://localhost:11434"
	OllamaModel   = "llama3.1"
)

// NewOllamaClient creates an engine backed by a local Ollama service through
// its OpenAI-compatible endpoint. No API key is needed.
func NewOllamaClient(baseURL, model string, temperature float64, timeout time.Duration) *ChatClient {
	if baseURL == "" {
		baseURL = OllamaBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	if model == "" {
		model = OllamaModel
	}
	return newChatClient(HTTPClientConfig{
		Provider:    "ollama",
		Model:       model,
		APIURL:      ChatCompletionsURL(baseURL),
		Temperature: temperature,
		KeyOptional: true,
	}, timeout)
}
