package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrRateLimited is returned when a provider answers 429. The extraction
// chain moves on to the next provider when it sees it.
var ErrRateLimited = errors.New("llm rate limited")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Model returns the configured default model
	Model() string

	// Complete sends one prompt and returns the raw completion text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single-turn prompt.
type CompletionRequest struct {
	System string
	Prompt string

	// Model overrides the provider default when set
	Model string

	MaxTokens int

	// JSON asks the provider for a JSON object when it supports a response format
	JSON bool
}

// CompletionResponse carries the completion text and accounting.
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: openai, anthropic, ollama, groq, deepseek, openrouter
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   30,
		MaxTokens: 1500,
	}
}

// statusError builds the error for a non-200 reply, mapping 429 to ErrRateLimited.
func statusError(provider string, code int, detail string) error {
	if code == 429 {
		return fmt.Errorf("%s: %w: %s", provider, ErrRateLimited, detail)
	}
	return fmt.Errorf("%s API error (%d): %s", provider, code, detail)
}

func (c Config) modelFor(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func (c Config) maxTokensFor(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}
