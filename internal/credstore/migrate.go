package credstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/cdprunbooker/runbooker/internal/quip"
)

// migrate moves a plaintext legacy token into encrypted storage. Source files
// are only rewritten after the replacement record has been written.
func (s *Store) migrate(ctx context.Context, entries []LegacyEntry) (string, *quip.UserIdentity, error) {
	logger := s.opts.Logger

	s.sink.Header("Security Notice: Insecure Token Storage Detected!")
	s.sink.Warning("We found API tokens stored insecurely in your shell configuration:")
	for _, e := range entries {
		s.sink.Info(fmt.Sprintf("  • %s (added by CDP Runbooker)", e.Path))
	}
	s.sink.Info("For better security, the token will be moved to encrypted storage and the plaintext entries removed.")

	ok, err := s.sink.Confirm(ctx, "Migrate to secure storage now?", true)
	if err != nil || !ok {
		s.sink.Info("Migration cancelled. You can run the command again to migrate later.")
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrMigrationAborted, err)
		}
		return "", nil, ErrMigrationAborted
	}

	var (
		token    string
		identity *quip.UserIdentity
	)
	for _, e := range entries {
		v := s.ValidateToken(ctx, e.Token)
		if v.OK() {
			token, identity = e.Token, v.Identity
			logger.DebugContext(ctx, "legacy token validated", "path", e.Path, "user", identity.DisplayName())
			break
		}
		logger.DebugContext(ctx, "legacy token did not validate", "path", e.Path, "outcome", v.Outcome.String())
		if ctx.Err() != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrMigrationAborted, ctx.Err())
		}
	}
	if token == "" {
		s.sink.Error("No valid tokens found in legacy storage. Please set up a new token.")
		return "", nil, fmt.Errorf("%w: no legacy token validated", ErrMigrationAborted)
	}

	if err := s.Persist(ctx, token, identity); err != nil {
		logger.WarnContext(ctx, "migration persist failed, legacy files untouched", "error", err)
		s.sink.Error(s.detail("Failed to store token securely. Please try manual setup.", err))
		return "", nil, fmt.Errorf("%w: %w", ErrMigrationAborted, err)
	}

	cleaned := s.cleanupLegacy(ctx, entries)

	s.sink.Success("Migration Complete!")
	s.sink.Info("✓ Token encrypted and stored securely")
	if len(cleaned) > 0 {
		s.sink.Info("✓ Removed insecure entries from: " + strings.Join(cleaned, ", "))
	}
	return token, identity, nil
}

// cleanupLegacy removes the sentinel pair from every source file and returns
// the paths that changed. Failures are reported but do not undo the migration.
func (s *Store) cleanupLegacy(ctx context.Context, entries []LegacyEntry) []string {
	var cleaned []string
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Path] {
			continue
		}
		seen[e.Path] = true

		changed, err := removeLegacyEntry(e.Path)
		if err != nil {
			s.opts.Logger.WarnContext(ctx, "failed to clean legacy entry", "path", e.Path, "error", err)
			s.sink.Warning(s.detail(fmt.Sprintf("Could not remove the plaintext token from %s; please delete it manually.", e.Path), err))
			continue
		}
		if changed {
			cleaned = append(cleaned, e.Path)
		}
	}
	return cleaned
}
