package llm

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/config"
)

// ErrNotConfigured is returned when the configured provider lacks the
// settings needed to make calls.
var ErrNotConfigured = errors.New("llm: provider is not configured")

// NewFromConfig builds the client for the configured provider.
func NewFromConfig(cfg config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	if !cfg.IsAvailable() {
		return nil, ErrNotConfigured
	}

	switch cfg.Provider {
	case "anthropic":
		client, err := NewAnthropicClient(&Config{
			Model:     cfg.Model,
			APIKey:    cfg.AnthropicAPIKey,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	case "openai", "":
		client, err := NewClient(&Config{
			Endpoint:  cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
