package agent

import "time"

// Provider defaults for the hosted OpenAI-compatible engines.
const (
	OpenAIBaseURL   = "https://api.openai.com/v1"
	OpenAIModel     = "gpt-4.1-mini"
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	DeepSeekModel   = "deepseek-chat"
	GLMBaseURL      = "https://open.bigmodel.cn/api/coding/paas/v4"
	GLMModel        = "glm-5"
)

// NewOpenAIClient creates an OpenAI engine. baseURL and model fall back to the
// public endpoint and OpenAIModel when empty.
func NewOpenAIClient(apiKey, model, baseURL string, temperature float64, timeout time.Duration) *ChatClient {
	return newHostedClient("openai", apiKey, model, OpenAIModel, baseURL, OpenAIBaseURL, temperature, timeout)
}

// NewDeepSeekClient creates a DeepSeek engine.
func NewDeepSeekClient(apiKey, model, baseURL string, temperature float64, timeout time.Duration) *ChatClient {
	return newHostedClient("deepseek", apiKey, model, DeepSeekModel, baseURL, DeepSeekBaseURL, temperature, timeout)
}

// NewGLMClient creates a Zhipu GLM engine.
func NewGLMClient(apiKey, model, baseURL string, temperature float64, timeout time.Duration) *ChatClient {
	return newHostedClient("glm", apiKey, model, GLMModel, baseURL, GLMBaseURL, temperature, timeout)
}

func newHostedClient(provider, apiKey, model, defaultModel, baseURL, defaultBaseURL string, temperature float64, timeout time.Duration) *ChatClient {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return newChatClient(HTTPClientConfig{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       model,
		APIURL:      ChatCompletionsURL(baseURL),
		Temperature: temperature,
	}, timeout)
}
