// File: api/schemas/interfaces.go
package schemas

import (
	"context"
	"encoding/json"
)

// -- LLM Client Schemas & Interface --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// Role identifies the author of a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool carries the results of tool calls back to the model.
	RoleTool Role = "tool"
)

// ToolCall is a request from the model to run a named tool with JSON arguments.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult answers a ToolCall. IsError marks results that ask the model to try again.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is a single entry of a conversation.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// UserMessage is a shorthand for a plain user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolSpec describes a tool the model may call. Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GenerationOptions provides detailed parameters to control the text generation.
type GenerationOptions struct {
	Temperature float64 `json:"temperature"` // Controls randomness. Lower is more deterministic.
	// RequireToolCall asks the provider to force a function call when it supports it.
	RequireToolCall bool `json:"require_tool_call"`
}

// CompletionRequest is one model invocation: instructions, the conversation so far and the
// tools available for this turn.
type CompletionRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	Messages     []Message         `json:"messages"`
	Tools        []ToolSpec        `json:"tools,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// TokenUsage reports what a single invocation consumed.
type TokenUsage struct {
	RequestTokens  int `json:"request_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
}

// CompletionResponse is the assistant turn produced by a model invocation.
type CompletionResponse struct {
	Message Message    `json:"message"`
	Usage   TokenUsage `json:"usage"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	// Complete performs one blocking invocation and returns the assistant message.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Close cleans up any resources held by the client.
	Close() error
}
