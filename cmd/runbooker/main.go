package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cdprunbooker/runbooker/cmd/runbooker/commands"
	"github.com/cdprunbooker/runbooker/internal/credstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.Execute(ctx, os.Args)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "\nInterrupted.")
		stop()
		os.Exit(130)
	case errors.Is(err, credstore.ErrCredentialUnavailable):
		fmt.Fprintln(os.Stderr, "Error: no valid Quip API token is available. Run \"runbooker login\" to set one up.")
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(1)
}
