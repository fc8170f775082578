package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/config"
)

func TestNewClient_Providers(t *testing.T) {
	logger := setupTestLogger(t)
	ctx := context.Background()

	t.Run("gemini", func(t *testing.T) {
		client, err := NewClient(ctx, getValidLLMConfig(), logger)
		require.NoError(t, err)
		assert.IsType(t, &GeminiClient{}, client)
	})

	t.Run("openai", func(t *testing.T) {
		cfg := getValidLLMConfig()
		cfg.Provider = config.ProviderOpenAI
		client, err := NewClient(ctx, cfg, logger)
		require.NoError(t, err)
		assert.IsType(t, &OpenAIClient{}, client)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		cfg := getValidLLMConfig()
		cfg.Provider = "anthropic"
		client, err := NewClient(ctx, cfg, logger)
		assert.Nil(t, client)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown or unsupported LLM provider configured: 'anthropic'")
	})

	t.Run("missing provider", func(t *testing.T) {
		cfg := getValidLLMConfig()
		cfg.Provider = ""
		_, err := NewClient(ctx, cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown or unsupported LLM provider")
	})

	t.Run("provider initialization error", func(t *testing.T) {
		cfg := getValidLLMConfig()
		cfg.APIKey = ""
		_, err := NewClient(ctx, cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Gemini API Key is required")
	})
}

func TestNewRouterFromConfig(t *testing.T) {
	logger := setupTestLogger(t)
	ctx := context.Background()

	fast := getValidLLMConfig()
	fast.Model = "gemini-fast"
	powerful := getValidLLMConfig()
	powerful.Model = "gemini-pro"

	t.Run("one client per tier", func(t *testing.T) {
		cfg := config.AgentConfig{LLM: config.LLMRouterConfig{
			DefaultFastModel:     "fast",
			DefaultPowerfulModel: "powerful",
			Models:               map[string]config.LLMModelConfig{"fast": fast, "powerful": powerful},
		}}
		router, err := NewRouterFromConfig(ctx, cfg, logger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = router.Close() })

		assert.Equal(t, "gemini-fast", router.clients[schemas.TierFast].(*GeminiClient).model)
		assert.Equal(t, "gemini-pro", router.clients[schemas.TierPowerful].(*GeminiClient).model)
	})

	t.Run("same model shares a client", func(t *testing.T) {
		cfg := config.AgentConfig{LLM: config.LLMRouterConfig{
			DefaultFastModel:     "only",
			DefaultPowerfulModel: "only",
			Models:               map[string]config.LLMModelConfig{"only": fast},
		}}
		router, err := NewRouterFromConfig(ctx, cfg, logger)
		require.NoError(t, err)
		assert.Same(t, router.clients[schemas.TierFast], router.clients[schemas.TierPowerful])
	})

	t.Run("undefined model", func(t *testing.T) {
		cfg := config.AgentConfig{LLM: config.LLMRouterConfig{
			DefaultFastModel:     "fast",
			DefaultPowerfulModel: "missing",
			Models:               map[string]config.LLMModelConfig{"fast": fast},
		}}
		_, err := NewRouterFromConfig(ctx, cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `llm model "missing" is not defined`)
	})
}
