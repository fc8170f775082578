// internal/agent/errors.go
package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrRetriesExhausted ends a run whose model kept producing rejected output.
	ErrRetriesExhausted = errors.New("exceeded maximum retries")
	// ErrUnknownTool is reported to the model when it calls a tool that was never registered.
	ErrUnknownTool = errors.New("unknown tool")
)

// RetryError is the recoverable failure: its Message goes back into the conversation and
// the model is asked for another answer. Tools and output validators return it.
type RetryError struct {
	Message string
}

func (e *RetryError) Error() string { return e.Message }

// Retry builds a RetryError.
func Retry(message string) error {
	return &RetryError{Message: message}
}

// Retryf builds a RetryError with a formatted message.
func Retryf(format string, args ...any) error {
	return &RetryError{Message: fmt.Sprintf(format, args...)}
}

// AsRetry reports whether err carries a RetryError anywhere in its chain.
func AsRetry(err error) (*RetryError, bool) {
	var r *RetryError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
