package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/config"
)

// MockLLMClient is a mock implementation of the LLMClient interface for testing.
type MockLLMClient struct {
	mock.Mock
	Name string
}

// Complete mocks the Complete method.
func (m *MockLLMClient) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*schemas.CompletionResponse)
	return resp, args.Error(1)
}

// Close mocks the Close method.
func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// setupTestLogger is a helper to create a zap logger for testing with an observer.
func setupTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	core, _ := observer.New(zap.DebugLevel)
	return zap.New(core)
}

// getValidLLMConfig returns a valid LLMModelConfig for testing purposes.
func getValidLLMConfig() config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:    config.ProviderGemini,
		APIKey:      "test-api-key",
		Model:       "test-model",
		APITimeout:  5 * time.Second,
		Temperature: 0.2,
		TopP:        0.9,
		TopK:        40,
	}
}

// createTestRequest is a two turn conversation that exercises every message role.
func createTestRequest() schemas.CompletionRequest {
	return schemas.CompletionRequest{
		SystemPrompt: "Extract flights.",
		Messages: []schemas.Message{
			schemas.UserMessage("Find me a flight"),
			{Role: schemas.RoleAssistant, ToolCalls: []schemas.ToolCall{
				{ID: "call_1", Name: "extract_flights", Arguments: []byte(`{}`)},
			}},
			{Role: schemas.RoleTool, ToolResults: []schemas.ToolResult{
				{CallID: "call_1", Name: "extract_flights", Content: `[{"flight_number":"BOS-YYZ303"}]`},
			}},
		},
		Tools: []schemas.ToolSpec{{
			Name:        "final_result",
			Description: "Report the flight.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"flight_number": map[string]any{"type": "string"}},
			},
		}},
		Tier:    schemas.TierPowerful,
		Options: schemas.GenerationOptions{RequireToolCall: true},
	}
}
