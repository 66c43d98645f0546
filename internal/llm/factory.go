package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/promessa/internal/model"
)

// OpenAI-compatible endpoints reachable through the OpenAI client.
var compatibleBaseURLs = map[string]string{
	"groq":       "https://api.groq.com/openai/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

var compatibleDefaultModels = map[string]string{
	"groq":       "llama-3.3-70b-versatile",
	"deepseek":   "deepseek-chat",
	"openrouter": "meta-llama/llama-3.1-8b-instruct",
}

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(config.Provider))

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "groq", "deepseek", "openrouter":
		if config.BaseURL == "" {
			config.BaseURL = compatibleBaseURLs[provider]
		}
		if config.Model == "" {
			config.Model = compatibleDefaultModels[provider]
		}
		p, err := NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		p.name = provider
		return p, nil

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, groq, deepseek, openrouter)", config.Provider)
	}
}

// ConfigFromModel converts one configured chain entry to llm.Config
func ConfigFromModel(entry model.LLMConfig, maxTokens int, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:   entry.Provider,
		Model:      entry.Model,
		APIKey:     entry.APIKey,
		BaseURL:    entry.BaseURL,
		Timeout:    entry.Timeout,
		MaxTokens:  maxTokens,
		HTTPProxy:  httpCfg.HTTPProxy,
		HTTPSProxy: httpCfg.HTTPSProxy,
		NoProxy:    httpCfg.NoProxy,
	}
}
