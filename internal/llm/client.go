// Package llm wraps the language model providers behind one narrow interface.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/irfndi/catalyst-ai-go/internal/config"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("language model returned no text")

// LanguageModelClient sends one prompt and returns the raw completion text.
type LanguageModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// NewFromConfig builds the provider selected in config.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig) (LanguageModelClient, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Temperature)
	case "anthropic", "claude":
		return NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.MaxTokens, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
