// Package console defines how the credential subsystem talks to the person at
// the keyboard.
package console

import (
	"context"
	"errors"
)

// ErrNoInput is returned by prompts when no interactive input is available.
var ErrNoInput = errors.New("no interactive input available")

// Sink receives user-facing messages and answers interactive questions.
type Sink interface {
	Header(msg string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
	Success(msg string)

	// Confirm asks a yes/no question. def is returned for an empty answer.
	Confirm(ctx context.Context, question string, def bool) (bool, error)

	// Prompt reads one line of input. Secret input is not echoed when the
	// input is a terminal.
	Prompt(ctx context.Context, question string, secret bool) (string, error)
}

// Discard drops all output and declines every question.
type Discard struct{}

// Compile-time check to ensure Discard implements Sink
var _ Sink = Discard{}

func (Discard) Header(string)  {}
func (Discard) Info(string)    {}
func (Discard) Warning(string) {}
func (Discard) Error(string)   {}
func (Discard) Success(string) {}

func (Discard) Confirm(context.Context, string, bool) (bool, error) {
	return false, nil
}

func (Discard) Prompt(context.Context, string, bool) (string, error) {
	return "", ErrNoInput
}
