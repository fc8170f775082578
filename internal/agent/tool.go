package agent

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/llmutil"
	"github.com/xkilldash9x/flight-agent-cli/internal/usage"
)

// RunContext is handed to tools and output validators during a run.
type RunContext[D any] struct {
	Deps   D
	Budget *usage.Budget
	// Retry is the number of retries consumed so far in this run.
	Retry  int
	Logger *zap.Logger
}

// Tool is a local function the model may call mid-run.
type Tool[D any] struct {
	spec schemas.ToolSpec
	call func(ctx context.Context, rc *RunContext[D], args json.RawMessage) (any, error)
}

// NewTool defines a tool whose arguments decode into P. Returning a RetryError from fn sends
// the message back to the model; any other error aborts the run.
func NewTool[D, P any](name, description string, fn func(ctx context.Context, rc *RunContext[D], params P) (any, error)) Tool[D] {
	return Tool[D]{
		spec: schemas.ToolSpec{
			Name:        name,
			Description: description,
			Parameters:  SchemaFor[P](),
		},
		call: func(ctx context.Context, rc *RunContext[D], args json.RawMessage) (any, error) {
			params, err := llmutil.ParseJSONResponse[P](string(args))
			if err != nil {
				return nil, Retryf("invalid arguments for tool %s: %v", name, err)
			}
			return fn(ctx, rc, *params)
		},
	}
}

// Name returns the tool name the model calls.
func (t Tool[D]) Name() string { return t.spec.Name }
