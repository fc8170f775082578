package agent

import (
	"context"
	"encoding/json"

	"github.com/xkilldash9x/flight-agent-cli/internal/llmutil"
)

// Output is one variant of an agent's result. The model selects a variant by calling its
// final-result tool.
type Output[T any] struct {
	name        string
	description string
	parameters  map[string]any
	build       func(args json.RawMessage) (T, error)
}

// NewOutput declares a result variant. The model fills in P; build converts it to T and
// must fail for values that violate T's constraints. Malformed JSON is retried, build
// failures are returned to the caller unchanged.
func NewOutput[T, P any](name, description string, build func(P) (T, error)) Output[T] {
	return Output[T]{
		name:        name,
		description: description,
		parameters:  SchemaFor[P](),
		build: func(args json.RawMessage) (T, error) {
			params, err := llmutil.ParseJSONResponse[P](string(args))
			if err != nil {
				var zero T
				return zero, Retryf("invalid arguments for %s: %v", name, err)
			}
			return build(*params)
		},
	}
}

// OutputValidator inspects a built result. It returns a RetryError to have the model try
// again, or the (possibly replaced) result to accept it.
type OutputValidator[D, T any] func(ctx context.Context, rc *RunContext[D], out T) (T, error)
