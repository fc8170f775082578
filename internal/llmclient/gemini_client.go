// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/config"
)

const (
	geminiRoleUser  = "user"
	geminiRoleModel = "model"
)

// GeminiClient implements schemas.LLMClient on the Gemini API with native function calling.
type GeminiClient struct {
	client *genai.Client
	model  string
	config config.LLMModelConfig
	logger *zap.Logger
}

// NewGeminiClient initializes the client. cfg.Endpoint overrides the API base URL.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("Gemini model name is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		config: cfg,
		logger: logger.Named("llm_client.gemini").With(zap.String("model", cfg.Model)),
	}, nil
}

// Complete sends the conversation and tools to Gemini and maps the first candidate back.
func (c *GeminiClient) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}

	out, err := fromGeminiResponse(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Info("LLM generation complete (Gemini)",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", out.Usage.RequestTokens),
		zap.Int("completion_tokens", out.Usage.ResponseTokens),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Int("tool_calls", len(out.Message.ToolCalls)),
	)
	return out, nil
}

// Close is a no-op; the SDK client holds no resources beyond its HTTP client.
func (c *GeminiClient) Close() error { return nil }

func (c *GeminiClient) buildConfig(req schemas.CompletionRequest) *genai.GenerateContentConfig {
	temperature := c.config.Temperature
	if req.Options.Temperature > 0 {
		temperature = float32(req.Options.Temperature)
	}
	gc := &genai.GenerateContentConfig{Temperature: genai.Ptr(temperature)}

	if req.SystemPrompt != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if c.config.TopP > 0 {
		gc.TopP = genai.Ptr(c.config.TopP)
	}
	if c.config.TopK > 0 {
		gc.TopK = genai.Ptr(float32(c.config.TopK))
	}
	if c.config.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	for category, threshold := range c.config.SafetyFilters {
		gc.SafetySettings = append(gc.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(category),
			Threshold: genai.HarmBlockThreshold(threshold),
		})
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters,
			})
		}
		gc.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		if req.Options.RequireToolCall {
			gc.ToolConfig = &genai.ToolConfig{
				FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny},
			}
		}
	}
	return gc
}

func toGeminiContents(msgs []schemas.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case schemas.RoleUser:
			contents = append(contents, &genai.Content{Role: geminiRoleUser, Parts: []*genai.Part{{Text: m.Content}}})

		case schemas.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				args := map[string]any{}
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &args); err != nil {
						// Malformed arguments are replayed as text so the model can see them.
						parts = append(parts, &genai.Part{Text: fmt.Sprintf("%s(%s)", call.Name, call.Arguments)})
						continue
					}
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: args}})
			}
			if len(parts) == 0 {
				parts = append(parts, &genai.Part{Text: ""})
			}
			contents = append(contents, &genai.Content{Role: geminiRoleModel, Parts: parts})

		case schemas.RoleTool:
			parts := make([]*genai.Part, 0, len(m.ToolResults))
			for _, r := range m.ToolResults {
				key := "output"
				if r.IsError {
					key = "error"
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       r.CallID,
					Name:     r.Name,
					Response: map[string]any{key: r.Content},
				}})
			}
			contents = append(contents, &genai.Content{Role: geminiRoleUser, Parts: parts})

		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return contents, nil
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) (*schemas.CompletionResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini API returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason == genai.FinishReasonSafety || candidate.FinishReason == genai.FinishReasonBlocklist {
			return nil, fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason)
		}
	}

	out := &schemas.CompletionResponse{Message: schemas.Message{Role: schemas.RoleAssistant}}
	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch {
			case part == nil || part.Thought:
			case part.FunctionCall != nil:
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return nil, fmt.Errorf("failed to encode function call arguments: %w", err)
				}
				if part.FunctionCall.Args == nil {
					args = []byte("{}")
				}
				id := part.FunctionCall.ID
				if id == "" {
					id = "call_" + uuid.NewString()
				}
				out.Message.ToolCalls = append(out.Message.ToolCalls, schemas.ToolCall{ID: id, Name: part.FunctionCall.Name, Arguments: args})
			case part.Text != "":
				text.WriteString(part.Text)
			}
		}
	}
	out.Message.Content = text.String()

	if um := resp.UsageMetadata; um != nil {
		out.Usage = schemas.TokenUsage{
			RequestTokens:  int(um.PromptTokenCount),
			ResponseTokens: int(um.CandidatesTokenCount),
			TotalTokens:    int(um.TotalTokenCount),
		}
	}
	return out, nil
}
