// internal/llmclient/openai_client.go
package llmclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/config"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClient implements schemas.LLMClient for OpenAI-compatible chat completion APIs.
type OpenAIClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	config     config.LLMModelConfig
	// newBackOff returns the retry policy for one request.
	newBackOff func() backoff.BackOff
}

// -- OpenAI API Request/Response Structures (Internal to this file) --

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string            `json:"type"`
	Function openAIFunctionDef `json:"function"`
}

type openAIFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIRequestPayload struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	Temperature *float32        `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponsePayload struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient initializes the client. An empty API key is allowed for local
// OpenAI-compatible servers.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("OpenAI model name is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}

	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		logger:     logger.Named("llm_client.openai").With(zap.String("model", cfg.Model)),
		config:     cfg,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Complete posts the conversation and retries transient failures with exponential backoff.
func (c *OpenAIClient) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
	body, err := json.Marshal(c.buildRequestPayload(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	var result *schemas.CompletionResponse
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var payload openAIResponsePayload
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(payload.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("openai API returned no choices"))
		}

		result = fromOpenAIMessage(payload.Choices[0].Message)
		result.Usage = schemas.TokenUsage{
			RequestTokens:  payload.Usage.PromptTokens,
			ResponseTokens: payload.Usage.CompletionTokens,
			TotalTokens:    payload.Usage.TotalTokens,
		}
		c.logger.Info("LLM generation complete (OpenAI)",
			zap.Duration("duration", time.Since(start)),
			zap.String("finish_reason", payload.Choices[0].FinishReason),
			zap.Int("prompt_tokens", payload.Usage.PromptTokens),
			zap.Int("completion_tokens", payload.Usage.CompletionTokens),
			zap.Int("total_tokens", payload.Usage.TotalTokens),
		)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// Close releases idle connections.
func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *OpenAIClient) buildRequestPayload(req schemas.CompletionRequest) openAIRequestPayload {
	temperature := c.config.Temperature
	if req.Options.Temperature > 0 {
		temperature = float32(req.Options.Temperature)
	}
	payload := openAIRequestPayload{
		Model:       c.config.Model,
		Temperature: &temperature,
		TopP:        c.config.TopP,
		MaxTokens:   c.config.MaxTokens,
	}

	if req.SystemPrompt != "" {
		payload.Messages = append(payload.Messages, openAIMessage{Role: "system", Content: strPtr(req.SystemPrompt)})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case schemas.RoleUser:
			payload.Messages = append(payload.Messages, openAIMessage{Role: "user", Content: strPtr(m.Content)})
		case schemas.RoleAssistant:
			msg := openAIMessage{Role: "assistant"}
			if m.Content != "" {
				msg.Content = strPtr(m.Content)
			}
			for _, call := range m.ToolCalls {
				args := string(call.Arguments)
				if args == "" {
					args = "{}"
				}
				msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
					ID:       call.ID,
					Type:     "function",
					Function: openAIFunctionCall{Name: call.Name, Arguments: args},
				})
			}
			payload.Messages = append(payload.Messages, msg)
		case schemas.RoleTool:
			for _, r := range m.ToolResults {
				payload.Messages = append(payload.Messages, openAIMessage{Role: "tool", ToolCallID: r.CallID, Content: strPtr(r.Content)})
			}
		}
	}

	for _, t := range req.Tools {
		payload.Tools = append(payload.Tools, openAITool{
			Type:     "function",
			Function: openAIFunctionDef{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	if len(payload.Tools) > 0 && req.Options.RequireToolCall {
		payload.ToolChoice = "required"
	}
	return payload
}

func (c *OpenAIClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("OpenAI API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("openai API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		return err
	default:
		return backoff.Permanent(err)
	}
}

func fromOpenAIMessage(m openAIMessage) *schemas.CompletionResponse {
	out := &schemas.CompletionResponse{Message: schemas.Message{Role: schemas.RoleAssistant}}
	if m.Content != nil {
		out.Message.Content = *m.Content
	}
	for _, call := range m.ToolCalls {
		out.Message.ToolCalls = append(out.Message.ToolCalls, schemas.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: []byte(call.Function.Arguments),
		})
	}
	return out
}

func strPtr(s string) *string { return &s }
