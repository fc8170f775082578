// Package usage tracks model invocations and token consumption against configured limits.
package usage

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
)

// ErrLimitExceeded is returned when a run would go past one of its configured limits.
var ErrLimitExceeded = errors.New("usage limit exceeded")

// Limits caps a run. A zero field means no limit.
type Limits struct {
	RequestLimit        int `mapstructure:"request_limit" yaml:"request_limit"`
	RequestTokensLimit  int `mapstructure:"request_tokens_limit" yaml:"request_tokens_limit"`
	ResponseTokensLimit int `mapstructure:"response_tokens_limit" yaml:"response_tokens_limit"`
	TotalTokensLimit    int `mapstructure:"total_tokens_limit" yaml:"total_tokens_limit"`
}

// Usage holds the counters accumulated so far.
type Usage struct {
	Requests       int
	RequestTokens  int
	ResponseTokens int
	TotalTokens    int
}

// Budget is shared by pointer between every agent run of a session. It is not safe for
// concurrent use; the booking flow drives it from a single goroutine.
type Budget struct {
	limits Limits
	usage  Usage
}

// NewBudget starts a budget at zero usage.
func NewBudget(limits Limits) *Budget {
	return &Budget{limits: limits}
}

// Limits returns the configured caps.
func (b *Budget) Limits() Limits { return b.limits }

// Snapshot returns a copy of the counters.
func (b *Budget) Snapshot() Usage { return b.usage }

// CheckBeforeRequest must be called before every model invocation.
func (b *Budget) CheckBeforeRequest() error {
	if b.limits.RequestLimit > 0 && b.usage.Requests >= b.limits.RequestLimit {
		return fmt.Errorf("%w: the next request would exceed the request_limit of %d", ErrLimitExceeded, b.limits.RequestLimit)
	}
	return nil
}

// Record counts one completed invocation and its tokens, then enforces the token limits.
func (b *Budget) Record(tokens schemas.TokenUsage) error {
	b.usage.Requests++
	b.usage.RequestTokens += tokens.RequestTokens
	b.usage.ResponseTokens += tokens.ResponseTokens
	total := tokens.TotalTokens
	if total == 0 {
		total = tokens.RequestTokens + tokens.ResponseTokens
	}
	b.usage.TotalTokens += total

	switch {
	case exceeds(b.usage.RequestTokens, b.limits.RequestTokensLimit):
		return fmt.Errorf("%w: request_tokens %d > request_tokens_limit %d", ErrLimitExceeded, b.usage.RequestTokens, b.limits.RequestTokensLimit)
	case exceeds(b.usage.ResponseTokens, b.limits.ResponseTokensLimit):
		return fmt.Errorf("%w: response_tokens %d > response_tokens_limit %d", ErrLimitExceeded, b.usage.ResponseTokens, b.limits.ResponseTokensLimit)
	case exceeds(b.usage.TotalTokens, b.limits.TotalTokensLimit):
		return fmt.Errorf("%w: total_tokens %d > total_tokens_limit %d", ErrLimitExceeded, b.usage.TotalTokens, b.limits.TotalTokensLimit)
	}
	return nil
}

func exceeds(value, limit int) bool {
	return limit > 0 && value > limit
}
