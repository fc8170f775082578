// Package agent runs a model against a conversation until it produces a typed result.
//
// An Agent owns a system prompt, a set of tools and a set of output variants. Each
// variant is exposed to the model as a final-result tool; a run ends when the model
// calls one with arguments that build and validate. Rejected answers are fed back as
// retry prompts, up to the configured retry limit.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/usage"
)

const (
	// DefaultMaxRetries applies when Config.MaxRetries is zero.
	DefaultMaxRetries = 1

	finalResultPrefix    = "final_result"
	retrySuffix          = "\n\nFix the errors and try again."
	plainTextNotAllowed  = "Plain text responses are not permitted, please include your response in a tool call"
	finalResultProcessed = "Final result processed."
	finalResultSkipped   = "Output tool not used - a final result was already processed."
	toolSkipped          = "Tool not executed - a final result was already processed."
)

// Config describes an agent. Tools and Validators are optional; at least one output is required.
type Config[D, T any] struct {
	Name         string
	SystemPrompt string
	Tier         schemas.ModelTier
	Tools        []Tool[D]
	Outputs      []Output[T]
	Validators   []OutputValidator[D, T]
	// MaxRetries is how many rejected answers a run tolerates. Negative means none.
	MaxRetries  int
	Temperature float64
	// Limiter paces model invocations. Nil disables pacing.
	Limiter *rate.Limiter
}

// Agent is immutable after New and may be shared between runs.
type Agent[D, T any] struct {
	name         string
	systemPrompt string
	tier         schemas.ModelTier
	temperature  float64
	client       schemas.LLMClient
	logger       *zap.Logger
	limiter      *rate.Limiter
	maxRetries   int

	specs      []schemas.ToolSpec
	tools      map[string]Tool[D]
	outputs    map[string]Output[T]
	validators []OutputValidator[D, T]
}

// New validates cfg and builds the agent.
func New[D, T any](client schemas.LLMClient, logger *zap.Logger, cfg Config[D, T]) (*Agent[D, T], error) {
	if client == nil {
		return nil, errors.New("agent requires an LLM client")
	}
	if len(cfg.Outputs) == 0 {
		return nil, fmt.Errorf("agent %q requires at least one output", cfg.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}

	a := &Agent[D, T]{
		name:         cfg.Name,
		systemPrompt: cfg.SystemPrompt,
		tier:         cfg.Tier,
		temperature:  cfg.Temperature,
		client:       client,
		logger:       logger.Named("agent").With(zap.String("agent", cfg.Name)),
		limiter:      cfg.Limiter,
		maxRetries:   maxRetries,
		tools:        make(map[string]Tool[D], len(cfg.Tools)),
		outputs:      make(map[string]Output[T], len(cfg.Outputs)),
		validators:   cfg.Validators,
	}

	for _, t := range cfg.Tools {
		if _, dup := a.tools[t.Name()]; dup {
			return nil, fmt.Errorf("agent %q: duplicate tool %q", cfg.Name, t.Name())
		}
		a.tools[t.Name()] = t
		a.specs = append(a.specs, t.spec)
	}
	for _, o := range cfg.Outputs {
		name := finalResultPrefix
		if len(cfg.Outputs) > 1 {
			name = finalResultPrefix + "_" + o.name
		}
		if _, dup := a.outputs[name]; dup {
			return nil, fmt.Errorf("agent %q: duplicate output %q", cfg.Name, o.name)
		}
		if _, clash := a.tools[name]; clash {
			return nil, fmt.Errorf("agent %q: tool name %q is reserved for outputs", cfg.Name, name)
		}
		a.outputs[name] = o
		a.specs = append(a.specs, schemas.ToolSpec{Name: name, Description: o.description, Parameters: o.parameters})
	}
	return a, nil
}

// Name returns the agent name used in logs.
func (a *Agent[D, T]) Name() string { return a.name }

// MaxRetries returns the effective retry limit.
func (a *Agent[D, T]) MaxRetries() int { return a.maxRetries }

// ToolSpecs returns every tool offered to the model, output tools last.
func (a *Agent[D, T]) ToolSpecs() []schemas.ToolSpec {
	return append([]schemas.ToolSpec(nil), a.specs...)
}

// RunResult is a successful run.
type RunResult[T any] struct {
	Output T

	prior       []schemas.Message
	newMessages []schemas.Message
	// finalMsg and finalResult locate the tool result that accepted the output.
	finalMsg, finalResult int
}

// NewMessages returns the messages produced by this run, starting with its user prompt.
func (r *RunResult[T]) NewMessages() []schemas.Message {
	return cloneMessages(r.newMessages)
}

// AllMessages returns the history the run started from followed by NewMessages.
func (r *RunResult[T]) AllMessages() []schemas.Message {
	return append(cloneMessages(r.prior), cloneMessages(r.newMessages)...)
}

// NewMessagesWithFinalReturn is NewMessages with the content of the accepting tool result
// replaced. A follow-up run can then tell the model the previous answer was turned down.
func (r *RunResult[T]) NewMessagesWithFinalReturn(content string) []schemas.Message {
	msgs := r.NewMessages()
	msgs[r.finalMsg].ToolResults[r.finalResult].Content = content
	return msgs
}

// AllMessagesWithFinalReturn is NewMessagesWithFinalReturn preceded by the history the run
// started from.
func (r *RunResult[T]) AllMessagesWithFinalReturn(content string) []schemas.Message {
	return append(cloneMessages(r.prior), r.NewMessagesWithFinalReturn(content)...)
}

// Run drives the model from userPrompt on top of history until an output is accepted.
// history is never modified. budget is shared with any nested run started by a tool; a
// nil budget is unlimited.
func (a *Agent[D, T]) Run(ctx context.Context, userPrompt string, deps D, history []schemas.Message, budget *usage.Budget) (*RunResult[T], error) {
	if budget == nil {
		budget = usage.NewBudget(usage.Limits{})
	}
	prior := cloneMessages(history)
	messages := append(cloneMessages(history), schemas.UserMessage(userPrompt))
	rc := &RunContext[D]{Deps: deps, Budget: budget, Logger: a.logger}

	a.logger.Debug("Starting run.", zap.Int("history_len", len(prior)), zap.Int("max_retries", a.maxRetries))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := a.invoke(ctx, messages, budget)
		if err != nil {
			return nil, err
		}
		reply := resp.Message
		reply.Role = schemas.RoleAssistant
		reply.ToolCalls = withCallIDs(reply.ToolCalls)
		messages = append(messages, reply)

		if len(reply.ToolCalls) == 0 {
			a.logger.Debug("Model answered in plain text.", zap.String("content", reply.Content))
			if err := a.consumeRetry(rc, plainTextNotAllowed); err != nil {
				return nil, err
			}
			messages = append(messages, schemas.UserMessage(plainTextNotAllowed+retrySuffix))
			continue
		}

		results, output, accepted, feedback, err := a.dispatch(ctx, rc, reply.ToolCalls)
		if err != nil {
			return nil, err
		}
		messages = append(messages, schemas.Message{Role: schemas.RoleTool, ToolResults: results})

		if accepted >= 0 {
			a.logger.Debug("Run finished.", zap.Any("usage", budget.Snapshot()))
			return &RunResult[T]{
				Output:      output,
				prior:       prior,
				newMessages: cloneMessages(messages[len(prior):]),
				finalMsg:    len(messages) - 1 - len(prior),
				finalResult: accepted,
			}, nil
		}
		if feedback != "" {
			if err := a.consumeRetry(rc, feedback); err != nil {
				return nil, err
			}
		}
	}
}

// invoke performs one budgeted, paced model call.
func (a *Agent[D, T]) invoke(ctx context.Context, messages []schemas.Message, budget *usage.Budget) (*schemas.CompletionResponse, error) {
	if err := budget.CheckBeforeRequest(); err != nil {
		return nil, err
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	req := schemas.CompletionRequest{
		SystemPrompt: a.systemPrompt,
		Messages:     cloneMessages(messages),
		Tools:        a.ToolSpecs(),
		Tier:         a.tier,
		Options: schemas.GenerationOptions{
			Temperature:     a.temperature,
			RequireToolCall: true,
		},
	}
	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent %s: model invocation failed: %w", a.name, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("agent %s: model returned no response", a.name)
	}
	if err := budget.Record(resp.Usage); err != nil {
		return nil, err
	}
	return resp, nil
}

// dispatch answers every tool call of one assistant turn. accepted is the index of the
// result that carried an accepted output, or -1. feedback is non-empty when at least one
// call was rejected and the model must try again.
func (a *Agent[D, T]) dispatch(ctx context.Context, rc *RunContext[D], calls []schemas.ToolCall) (results []schemas.ToolResult, output T, accepted int, feedback string, err error) {
	accepted = -1
	var rejected []string

	for _, call := range calls {
		result := schemas.ToolResult{CallID: call.ID, Name: call.Name}

		if out, ok := a.outputs[call.Name]; ok {
			if accepted >= 0 {
				result.Content = finalResultSkipped
				results = append(results, result)
				continue
			}
			value, ferr := a.finalize(ctx, rc, out, call)
			if ferr != nil {
				r, retry := AsRetry(ferr)
				if !retry {
					return nil, output, -1, "", fmt.Errorf("agent %s: %s: %w", a.name, call.Name, ferr)
				}
				result.Content, result.IsError = r.Message+retrySuffix, true
				rejected = append(rejected, r.Message)
				results = append(results, result)
				continue
			}
			output, accepted = value, len(results)
			result.Content = finalResultProcessed
			results = append(results, result)
			continue
		}

		tool, ok := a.tools[call.Name]
		if !ok {
			msg := fmt.Sprintf("%v %q. Available tools: %s", ErrUnknownTool, call.Name, strings.Join(a.toolNames(), ", "))
			result.Content, result.IsError = msg+retrySuffix, true
			rejected = append(rejected, msg)
			results = append(results, result)
			continue
		}
		if accepted >= 0 {
			result.Content = toolSkipped
			results = append(results, result)
			continue
		}

		a.logger.Debug("Calling tool.", zap.String("tool", tool.Name()))
		value, terr := tool.call(ctx, rc, call.Arguments)
		if terr != nil {
			r, retry := AsRetry(terr)
			if !retry {
				return nil, output, -1, "", fmt.Errorf("agent %s: tool %s: %w", a.name, call.Name, terr)
			}
			result.Content, result.IsError = r.Message+retrySuffix, true
			rejected = append(rejected, r.Message)
			results = append(results, result)
			continue
		}
		content, merr := renderToolReturn(value)
		if merr != nil {
			return nil, output, -1, "", fmt.Errorf("agent %s: tool %s: %w", a.name, call.Name, merr)
		}
		result.Content = content
		results = append(results, result)
	}
	return results, output, accepted, strings.Join(rejected, "\n"), nil
}

func (a *Agent[D, T]) finalize(ctx context.Context, rc *RunContext[D], out Output[T], call schemas.ToolCall) (T, error) {
	value, err := out.build(call.Arguments)
	if err != nil {
		return value, err
	}
	for _, validate := range a.validators {
		if value, err = validate(ctx, rc, value); err != nil {
			return value, err
		}
	}
	return value, nil
}

// consumeRetry charges one retry against the run.
func (a *Agent[D, T]) consumeRetry(rc *RunContext[D], reason string) error {
	rc.Retry++
	a.logger.Info("Model output rejected.", zap.Int("retry", rc.Retry), zap.Int("max_retries", a.maxRetries), zap.String("reason", reason))
	if rc.Retry > a.maxRetries {
		return fmt.Errorf("agent %s: %w (%d): %s", a.name, ErrRetriesExhausted, a.maxRetries, reason)
	}
	return nil
}

// withCallIDs returns calls with an ID on every entry, so each tool result pairs with its
// call when the history is replayed. Providers that omit IDs get positional ones.
func withCallIDs(calls []schemas.ToolCall) []schemas.ToolCall {
	if len(calls) == 0 {
		return calls
	}
	out := append([]schemas.ToolCall(nil), calls...)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = fmt.Sprintf("call_%d", i)
		}
	}
	return out
}

func (a *Agent[D, T]) toolNames() []string {
	names := make([]string, 0, len(a.specs))
	for _, s := range a.specs {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

func renderToolReturn(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool return: %w", err)
	}
	return string(raw), nil
}
