package credstore

import (
	"context"
	"fmt"

	"github.com/cdprunbooker/runbooker/internal/quip"
)

// setup interactively obtains, validates and stores a new token.
func (s *Store) setup(ctx context.Context) (string, *quip.UserIdentity, error) {
	logger := s.opts.Logger

	s.sink.Header("Quip API Token Setup")
	s.sink.Info("To use this program, you need a Quip API token.")

	ok, err := s.sink.Confirm(ctx, "Set up a token now?", true)
	if err != nil {
		return "", nil, s.abort(err)
	}
	if !ok {
		s.sink.Info("Token setup skipped.")
		return "", nil, fmt.Errorf("%w: setup declined", ErrCredentialUnavailable)
	}

	s.openTokenPage(ctx)

	s.sink.Info("Instructions:")
	s.sink.Info("1. Log in to Quip if prompted")
	s.sink.Info("2. On the token page, copy your Personal Access Token")

	for attempt := 1; s.opts.SetupAttempts == 0 || attempt <= s.opts.SetupAttempts; attempt++ {
		token, err := s.sink.Prompt(ctx, "Enter your Quip API token", true)
		if err != nil {
			return "", nil, s.abort(err)
		}

		v := s.ValidateToken(ctx, token)
		switch {
		case v.OK():
		case v.Outcome == OutcomeTooShort:
			s.sink.Error("The token appears to be invalid (too short). Please try again.")
			continue
		case ctx.Err() != nil:
			return "", nil, s.abort(ctx.Err())
		default:
			logger.DebugContext(ctx, "entered token rejected", "outcome", v.Outcome.String(), "attempt", attempt)
			s.sink.Error(s.detail("The token is invalid or expired. Please try again.", v.Err))
			continue
		}

		if err := s.Persist(ctx, token, v.Identity); err != nil {
			logger.WarnContext(ctx, "failed to persist token", "error", err)
			s.sink.Error(s.detail("Failed to store token securely. Please try again.", err))
			continue
		}

		s.sink.Success("Token setup complete!")
		s.sink.Info("Authenticated as: " + v.Identity.DisplayName())
		return token, v.Identity, nil
	}

	s.sink.Error(fmt.Sprintf("No valid token after %d attempts.", s.opts.SetupAttempts))
	return "", nil, fmt.Errorf("%w: setup attempts exhausted", ErrCredentialUnavailable)
}

func (s *Store) openTokenPage(ctx context.Context) {
	url := s.opts.TokenURL
	if s.opts.OpenBrowser == nil {
		s.sink.Info("Visit the token page to create a token:")
		s.sink.Info("  " + url)
		return
	}

	s.sink.Info("Opening the Quip API token page in your web browser...")
	if err := s.opts.OpenBrowser(url); err != nil {
		s.opts.Logger.DebugContext(ctx, "browser launch failed", "error", err)
		s.sink.Warning("Could not open browser automatically. Please manually visit:")
		s.sink.Info("  " + url)
	}
}

// abort converts an interrupted prompt (EOF, Ctrl-C) into the boundary error.
func (s *Store) abort(err error) error {
	s.sink.Info("Token setup cancelled.")
	return fmt.Errorf("%w: %w: %w", ErrCredentialUnavailable, ErrSetupCanceled, err)
}
