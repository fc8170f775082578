package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/config"
)

// NewClient is a factory function that creates an LLMClient based on the model configuration.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]", cfg.Provider, config.ProviderGemini, config.ProviderOpenAI)
	}
}

// NewRouterFromConfig builds one client per routed model and wraps them in an LLMRouter.
// When both tiers name the same model they share a client.
func NewRouterFromConfig(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger) (*LLMRouter, error) {
	build := func(name string) (schemas.LLMClient, error) {
		modelCfg, ok := cfg.LLM.Models[name]
		if !ok {
			return nil, fmt.Errorf("llm model %q is not defined", name)
		}
		client, err := NewClient(ctx, modelCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for model %q: %w", name, err)
		}
		return client, nil
	}

	fast, err := build(cfg.LLM.DefaultFastModel)
	if err != nil {
		return nil, err
	}
	powerful := fast
	if cfg.LLM.DefaultPowerfulModel != cfg.LLM.DefaultFastModel {
		if powerful, err = build(cfg.LLM.DefaultPowerfulModel); err != nil {
			_ = fast.Close()
			return nil, err
		}
	}
	return NewLLMRouter(logger, fast, powerful)
}
