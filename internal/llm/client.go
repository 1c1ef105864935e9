// Package llm provides the language model client used for query analysis,
// summarization, and report synthesis. Providers share one interface;
// callers must tolerate malformed replies and fall back deterministically.
package llm

import (
	"context"
	"fmt"

	"webresearch/internal/config"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

// New constructs the provider selected by cfg.
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaClient(cfg), nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
