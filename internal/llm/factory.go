package llm

import (
	"context"
	"fmt"

	"github.com/spherical/newspaper-digest/internal/config"
	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// New builds the configured extraction capability.
func New(ctx context.Context, cfg config.LLMConfig, logger *observability.Logger) (domain.ExtractionCapability, error) {
	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	opts := Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Retry:   retry,
		Logger:  logger,
	}

	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(opts)
	case "gemini":
		return NewGeminiClient(ctx, opts)
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown LLM provider %q", cfg.Provider), nil)
	}
}
