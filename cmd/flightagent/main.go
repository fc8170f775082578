// File: cmd/flightagent/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/flight-agent-cli/cmd"
)

// Allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	osExit(run())
}

func run() int {
	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return exitCode(cmd.Execute(ctx))
}

// exitCode maps the command result to the process exit status. A cancelled run exits cleanly.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	default:
		return 1
	}
}
