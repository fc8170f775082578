// Package console implements the line-oriented prompts of the interactive booking flow.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrInputClosed is returned when the input stream ends before an answer is read.
var ErrInputClosed = errors.New("input closed")

const invalidChoice = "Please select one of the available options"

// Prompter reads answers line by line from in and writes questions to out.
type Prompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// New creates a Prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Say prints one line.
func (p *Prompter) Say(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, msg)
}

// Ask prints question and returns the trimmed answer.
func (p *Prompter) Ask(ctx context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ask(ctx, question)
}

// Choose asks question until the answer is one of choices. An empty string is a valid
// choice only when listed.
func (p *Prompter) Choose(ctx context.Context, question string, choices []string) (string, error) {
	if len(choices) == 0 {
		return "", errors.New("choose requires at least one choice")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		answer, err := p.ask(ctx, question)
		if err != nil {
			return "", err
		}
		for _, c := range choices {
			if strings.EqualFold(answer, c) {
				return c, nil
			}
		}
		fmt.Fprintln(p.out, invalidChoice)
	}
}

func (p *Prompter) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(p.out, "%s: ", question)

	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
