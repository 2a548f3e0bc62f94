package credstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cdprunbooker/runbooker/internal/quip"
)

// Outcome classifies the result of a validation call.
type Outcome int

const (
	OutcomeValid Outcome = iota
	// OutcomeTooShort means the token was rejected locally without a network call.
	OutcomeTooShort
	// OutcomeRejected means the platform refused the token (401/403, invalid, expired).
	OutcomeRejected
	// OutcomeTransientExhausted means every attempt hit a network or availability error.
	OutcomeTransientExhausted
	// OutcomeUnclassified means an unexpected failure ended validation without retry.
	OutcomeUnclassified
	// OutcomeMalformed means the platform answered but without a usable identity.
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeTooShort:
		return "too short"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransientExhausted:
		return "transient failure, retries exhausted"
	case OutcomeUnclassified:
		return "unclassified failure"
	case OutcomeMalformed:
		return "malformed response"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Validation is the result of ValidateToken. Identity is set only when OK.
type Validation struct {
	Identity *quip.UserIdentity
	Outcome  Outcome
	Attempts int
	Err      error
}

// OK reports whether the token was accepted.
func (v Validation) OK() bool {
	return v.Outcome == OutcomeValid && v.Identity != nil
}

type failureClass int

const (
	classUnclassified failureClass = iota
	classTransient
	classAuth
	classMalformed
)

var (
	transientKeywords = []string{"timeout", "connection", "network", "temporary", "service unavailable", "502", "503", "504"}
	authKeywords      = []string{"unauthorized", "401", "forbidden", "403", "invalid", "expired"}
)

// classify decides the retry policy for a failed "who am I" call. Typed
// information wins; message keywords catch everything else.
func classify(err error) failureClass {
	if errors.Is(err, quip.ErrMalformedResponse) {
		return classMalformed
	}

	var apiErr *quip.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return classTransient
		case http.StatusUnauthorized, http.StatusForbidden:
			return classAuth
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return classTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return classTransient
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, transientKeywords) {
		return classTransient
	}
	if containsAny(msg, authKeywords) {
		return classAuth
	}
	return classUnclassified
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ValidateToken checks token against the platform's "who am I" endpoint.
// Transient failures are retried with linear backoff up to the configured
// retry budget; every other failure ends validation immediately.
func (s *Store) ValidateToken(ctx context.Context, token string) Validation {
	return s.validate(ctx, token, s.opts.MaxRetries, false)
}

func (s *Store) validate(ctx context.Context, token string, maxRetries int, verbose bool) Validation {
	logger := s.opts.Logger

	if !shapeValid(token) {
		logger.DebugContext(ctx, "token rejected locally", "length", len(token))
		return Validation{Outcome: OutcomeTooShort, Err: errTokenTooShort}
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	client, err := quip.NewClient(s.opts.BaseURL, token, s.opts.ClientOptions...)
	if err != nil {
		return Validation{Outcome: OutcomeUnclassified, Err: err}
	}

	var (
		attempt int
		result  Validation
	)

	// Linear backoff: the n-th retry waits n × RetryBackoff.
	var retryIndex int
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		retryIndex++
		wait := time.Duration(retryIndex) * s.opts.RetryBackoff
		logger.DebugContext(ctx, "network error, retrying", "wait", wait)
		if verbose {
			s.sink.Info(fmt.Sprintf("Network error - retrying in %s...", wait))
		}
		return wait, false
	})
	backoff := retry.WithMaxRetries(uint64(maxRetries-1), linear)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		logger.DebugContext(ctx, "validating token", "attempt", attempt, "max", maxRetries)
		if verbose {
			s.sink.Info(fmt.Sprintf("Attempt %d/%d: Validating token...", attempt, maxRetries))
		}

		user, err := client.CurrentUser(ctx)
		if err == nil {
			if user == nil || user.ID == "" {
				result = Validation{Outcome: OutcomeMalformed, Err: errMissingID}
				return nil
			}
			result = Validation{Identity: user, Outcome: OutcomeValid}
			return nil
		}

		logger.DebugContext(ctx, "validation attempt failed", "attempt", attempt, "error", err)
		if verbose {
			s.sink.Error(fmt.Sprintf("Validation error: %T: %v", err, err))
		}

		switch classify(err) {
		case classTransient:
			result = Validation{Outcome: OutcomeTransientExhausted, Err: fmt.Errorf("%w: %w", ErrTransient, err)}
			return retry.RetryableError(err)
		case classAuth:
			result = Validation{Outcome: OutcomeRejected, Err: fmt.Errorf("%w: %w", ErrValidationFailed, err)}
		case classMalformed:
			result = Validation{Outcome: OutcomeMalformed, Err: err}
		default:
			result = Validation{Outcome: OutcomeUnclassified, Err: err}
		}
		return err
	})
	result.Attempts = attempt

	// Cancellation while waiting between attempts surfaces here.
	if err != nil && ctx.Err() != nil && result.Err == nil {
		result = Validation{Outcome: OutcomeUnclassified, Err: ctx.Err(), Attempts: attempt}
	}

	switch result.Outcome {
	case OutcomeValid:
		logger.DebugContext(ctx, "token valid", "user", result.Identity.DisplayName(), "attempts", attempt)
		if verbose {
			s.sink.Success(fmt.Sprintf("Token validated successfully: %s", result.Identity.DisplayName()))
		}
	case OutcomeTransientExhausted:
		logger.DebugContext(ctx, "max retries reached for network errors", "attempts", attempt)
		if verbose {
			s.sink.Error("Max retries reached for network errors")
		}
	case OutcomeRejected:
		logger.DebugContext(ctx, "authentication error, token invalid or expired")
		if verbose {
			s.sink.Error("Authentication error - token appears to be invalid or expired")
		}
	case OutcomeMalformed:
		logger.DebugContext(ctx, "validation response carried no identity", "error", result.Err)
		if verbose {
			s.sink.Error("Token validation failed: invalid response from API")
		}
	case OutcomeUnclassified:
		logger.DebugContext(ctx, "unexpected validation error", "error", result.Err)
		if verbose {
			s.sink.Error(fmt.Sprintf("Unexpected error type: %T", result.Err))
		}
	}
	return result
}
