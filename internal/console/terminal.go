package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Terminal writes styled messages to out and reads answers from in.
type Terminal struct {
	in     *bufio.Reader
	fd     int
	hasTTY bool
	out    io.Writer
}

// Compile-time check to ensure Terminal implements Sink
var _ Sink = (*Terminal)(nil)

// NewTerminal creates a Terminal. Secret prompts suppress echo only when in
// is an *os.File attached to a terminal.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{
		in:  bufio.NewReader(in),
		out: out,
	}
	if f, ok := in.(*os.File); ok {
		t.fd = int(f.Fd())
		t.hasTTY = term.IsTerminal(t.fd)
	}
	return t
}

// Stdio returns a Terminal bound to the process's standard streams.
func Stdio() *Terminal {
	return NewTerminal(os.Stdin, os.Stdout)
}

func (t *Terminal) Header(msg string) {
	_, _ = fmt.Fprintf(t.out, "\n%s\n", headerStyle.Render("=== "+msg+" ==="))
}

func (t *Terminal) Info(msg string) {
	_, _ = fmt.Fprintln(t.out, msg)
}

func (t *Terminal) Warning(msg string) {
	_, _ = fmt.Fprintln(t.out, warningStyle.Render("Warning: "+msg))
}

func (t *Terminal) Error(msg string) {
	_, _ = fmt.Fprintln(t.out, errorStyle.Render("Error: "+msg))
}

func (t *Terminal) Success(msg string) {
	_, _ = fmt.Fprintln(t.out, successStyle.Render(msg))
}

// Confirm asks until it gets y/yes/n/no or an empty answer.
func (t *Terminal) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	choices := "y/N"
	if def {
		choices = "Y/n"
	}
	for {
		answer, err := t.readLine(ctx, fmt.Sprintf("%s [%s]: ", question, choices))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		_, _ = fmt.Fprintln(t.out, "Please answer y or n.")
	}
}

// Prompt reads a single non-empty line, re-asking on empty input.
func (t *Terminal) Prompt(ctx context.Context, question string, secret bool) (string, error) {
	for {
		var (
			answer string
			err    error
		)
		if secret && t.hasTTY {
			answer, err = t.readSecret(ctx, question+": ")
		} else {
			answer, err = t.readLine(ctx, question+": ")
		}
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		_, _ = fmt.Fprintln(t.out, "This field is required. Please enter a value.")
	}
}

func (t *Terminal) readLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(t.out, prompt); err != nil {
		return "", err
	}

	line, err := await(ctx, func() (string, error) {
		return t.in.ReadString('\n')
	})
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) readSecret(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(t.out, prompt); err != nil {
		return "", err
	}

	// Echo stays off if the read is abandoned, so restore it ourselves.
	state, stateErr := term.GetState(t.fd)
	b, err := await(ctx, func() (string, error) {
		b, err := readPassword(t.fd)
		return string(b), err
	})
	if err != nil && ctx.Err() != nil && stateErr == nil {
		_ = term.Restore(t.fd, state)
	}
	_, _ = fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(b), nil
}

// await runs a blocking read and gives up when ctx is done. The read itself
// cannot be interrupted and is left to finish in the background.
func await(ctx context.Context, read func() (string, error)) (string, error) {
	type result struct {
		s   string
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := read()
		done <- result{s, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.s, r.err
	}
}
