// Package provider wraps the remote language-model APIs the playground
// tracks. Providers are constructed once at process start from explicit
// configuration and injected where needed; there is no lazily initialized
// shared client state.
package provider

import (
	"context"
	"fmt"
)

// ChatProvider is an opaque remote model call returning a completion and
// token usage. Latency is measured by the caller.
type ChatProvider interface {
	// Chat sends a single user message and returns the model's reply.
	Chat(ctx context.Context, message string) (*ChatResult, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model identifier requests are sent to.
	Model() string
}

// ChatResult contains the completion and usage reported by the provider.
type ChatResult struct {
	Text             string
	TokensPrompt     int
	TokensCompletion int
}

// Error marks a failure of the remote model call (timeout, auth,
// rate-limit, malformed response).
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config selects and configures a chat provider.
type Config struct {
	Provider  string // anthropic, openai
	APIKey    string
	Model     string
	MaxTokens int
}

// New creates a chat provider from config.
func New(cfg Config) (ChatProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
