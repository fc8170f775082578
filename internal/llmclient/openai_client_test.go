package llmclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/config"
)

func setupOpenAIClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := getValidLLMConfig()
	cfg.Provider = config.ProviderOpenAI
	cfg.Endpoint = server.URL

	client, err := NewOpenAIClient(cfg, setupTestLogger(t))
	require.NoError(t, err)
	client.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

const openAIToolReply = `{
  "choices": [{
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{"id": "call_abc", "type": "function", "function": {"name": "final_result", "arguments": "{\"flight_number\":\"BOS-YYZ303\"}"}}]
    },
    "finish_reason": "tool_calls"
  }],
  "usage": {"prompt_tokens": 30, "completion_tokens": 8, "total_tokens": 38}
}`

func TestNewOpenAIClient_Defaults(t *testing.T) {
	cfg := getValidLLMConfig()
	cfg.Endpoint = ""
	client, err := NewOpenAIClient(cfg, setupTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, defaultOpenAIEndpoint, client.endpoint)

	cfg.Model = ""
	_, err = NewOpenAIClient(cfg, setupTestLogger(t))
	assert.Error(t, err)
}

func TestOpenAIClient_Complete(t *testing.T) {
	var payload openAIRequestPayload
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &payload))
		_, _ = io.WriteString(w, openAIToolReply)
	})

	resp, err := client.Complete(context.Background(), createTestRequest())
	require.NoError(t, err)

	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, schemas.ToolCall{ID: "call_abc", Name: "final_result", Arguments: []byte(`{"flight_number":"BOS-YYZ303"}`)}, resp.Message.ToolCalls[0])
	assert.Equal(t, schemas.TokenUsage{RequestTokens: 30, ResponseTokens: 8, TotalTokens: 38}, resp.Usage)

	assert.Equal(t, "test-model", payload.Model)
	assert.Equal(t, "required", payload.ToolChoice)
	require.Len(t, payload.Tools, 1)
	assert.Equal(t, "function", payload.Tools[0].Type)

	require.Len(t, payload.Messages, 4)
	assert.Equal(t, "system", payload.Messages[0].Role)
	assert.Equal(t, "user", payload.Messages[1].Role)
	assert.Equal(t, "assistant", payload.Messages[2].Role)
	assert.Nil(t, payload.Messages[2].Content)
	assert.Equal(t, "{}", payload.Messages[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "tool", payload.Messages[3].Role)
	assert.Equal(t, "call_1", payload.Messages[3].ToolCallID)
}

func TestOpenAIClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"overloaded"}`)
			return
		}
		_, _ = io.WriteString(w, openAIToolReply)
	})

	resp, err := client.Complete(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Len(t, resp.Message.ToolCalls, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOpenAIClient_PermanentErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid schema"}`)
	})

	_, err := client.Complete(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.EqualValues(t, 1, calls.Load())
}

func TestOpenAIClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.EqualValues(t, 4, calls.Load(), "one attempt plus three retries")
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	})

	_, err := client.Complete(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
