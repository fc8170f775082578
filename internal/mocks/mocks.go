// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Complete provides a mock function for LLM calls.
func (m *MockLLMClient) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.CompletionResponse), args.Error(1)
}

// Close provides a mock function for Close.
func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Scripted LLM --

// ErrScriptExhausted is returned when a scripted model receives more requests than it was given steps.
var ErrScriptExhausted = errors.New("scripted model has no step left")

// DefaultStepUsage is charged for every scripted reply.
var DefaultStepUsage = schemas.TokenUsage{RequestTokens: 10, ResponseTokens: 5, TotalTokens: 15}

// Step produces one scripted reply. It sees the full request so replies can depend on
// earlier tool results.
type Step func(req schemas.CompletionRequest) (*schemas.CompletionResponse, error)

// ScriptedLLM is a deterministic schemas.LLMClient. Replies are scripted per system prompt,
// so several agents can share one client the way they share one provider in production.
type ScriptedLLM struct {
	mu       sync.Mutex
	scripts  map[string][]Step
	fallback map[string]Step
	requests []schemas.CompletionRequest
	closed   bool
}

// NewScriptedLLM returns an empty script.
func NewScriptedLLM() *ScriptedLLM {
	return &ScriptedLLM{
		scripts:  make(map[string][]Step),
		fallback: make(map[string]Step),
	}
}

// On queues steps for requests carrying systemPrompt.
func (s *ScriptedLLM) On(systemPrompt string, steps ...Step) *ScriptedLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[systemPrompt] = append(s.scripts[systemPrompt], steps...)
	return s
}

// Always answers systemPrompt with step once its queued steps run out.
func (s *ScriptedLLM) Always(systemPrompt string, step Step) *ScriptedLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback[systemPrompt] = step
	return s
}

// Complete pops the next step for the request's system prompt.
func (s *ScriptedLLM) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	queue := s.scripts[req.SystemPrompt]
	var step Step
	if len(queue) > 0 {
		step = queue[0]
		s.scripts[req.SystemPrompt] = queue[1:]
	} else {
		step = s.fallback[req.SystemPrompt]
	}
	s.mu.Unlock()

	if step == nil {
		return nil, fmt.Errorf("%w for system prompt %q", ErrScriptExhausted, req.SystemPrompt)
	}
	return step(req)
}

// Close marks the client closed.
func (s *ScriptedLLM) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *ScriptedLLM) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Requests returns every request received, in order.
func (s *ScriptedLLM) Requests() []schemas.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schemas.CompletionRequest(nil), s.requests...)
}

// RequestsFor returns the requests received for one system prompt.
func (s *ScriptedLLM) RequestsFor(systemPrompt string) []schemas.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schemas.CompletionRequest
	for _, r := range s.requests {
		if r.SystemPrompt == systemPrompt {
			out = append(out, r)
		}
	}
	return out
}

// Pending returns the number of queued steps not yet consumed for systemPrompt.
func (s *ScriptedLLM) Pending(systemPrompt string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scripts[systemPrompt])
}

// CallTool replies with a single call of tool name with args encoded as JSON.
func CallTool(name string, args any) Step {
	return CallTools(schemas.ToolCall{Name: name, Arguments: mustJSON(args)})
}

// CallTools replies with several tool calls in one turn. Missing IDs are filled in.
func CallTools(calls ...schemas.ToolCall) Step {
	return func(req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
		out := make([]schemas.ToolCall, len(calls))
		for i, c := range calls {
			if c.ID == "" {
				c.ID = fmt.Sprintf("call_%d_%d", len(req.Messages), i)
			}
			out[i] = c
		}
		return &schemas.CompletionResponse{
			Message: schemas.Message{Role: schemas.RoleAssistant, ToolCalls: out},
			Usage:   DefaultStepUsage,
		}, nil
	}
}

// RawToolCall replies with a tool call whose arguments are sent verbatim.
func RawToolCall(name, rawArgs string) Step {
	return CallTools(schemas.ToolCall{Name: name, Arguments: json.RawMessage(rawArgs)})
}

// Text replies with plain text and no tool call.
func Text(content string) Step {
	return func(schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
		return &schemas.CompletionResponse{
			Message: schemas.Message{Role: schemas.RoleAssistant, Content: content},
			Usage:   DefaultStepUsage,
		}, nil
	}
}

// Fail makes the invocation itself fail.
func Fail(err error) Step {
	return func(schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
		return nil, err
	}
}

// WithUsage overrides the token usage reported by step.
func WithUsage(step Step, usage schemas.TokenUsage) Step {
	return func(req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
		resp, err := step(req)
		if resp != nil {
			resp.Usage = usage
		}
		return resp, err
	}
}

// LastToolResults returns the tool results of the most recent tool message in req.
func LastToolResults(req schemas.CompletionRequest) []schemas.ToolResult {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == schemas.RoleTool {
			return req.Messages[i].ToolResults
		}
	}
	return nil
}

func mustJSON(v any) json.RawMessage {
	if raw, ok := v.(string); ok {
		return json.RawMessage(raw)
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mocks: cannot encode tool arguments: %v", err))
	}
	return data
}

// -- Purchaser Mock --

// MockPurchaser mocks the booking purchase sink.
type MockPurchaser struct {
	mock.Mock
}

// Purchase provides a mock function for Purchase.
func (m *MockPurchaser) Purchase(ctx context.Context, flight schemas.FlightRecord, seat schemas.SeatPreference) (schemas.Confirmation, error) {
	args := m.Called(ctx, flight, seat)
	return args.Get(0).(schemas.Confirmation), args.Error(1)
}
