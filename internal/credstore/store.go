package credstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cdprunbooker/runbooker/internal/console"
	"github.com/cdprunbooker/runbooker/internal/quip"
	"github.com/cdprunbooker/runbooker/internal/tokenstore"
)

// Default policy values.
const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 2 * time.Second
	DefaultTokenURL     = "https://quip-amazon.com/dev/token"
)

// Resolver is the name-resolution subset used by Diagnose.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Options configures a Store. Records is required; zero values elsewhere
// select defaults.
type Options struct {
	// Records persists the serialized StoredCredential.
	Records tokenstore.RecordStore

	// BaseURL is the platform API root. Defaults to quip.DefaultBaseURL.
	BaseURL string
	// TokenURL is the page where users issue a personal access token.
	TokenURL string
	// ClientOptions are passed to every quip.Client the store creates.
	ClientOptions []quip.Option

	// MaxRetries bounds validation attempts on transient failures.
	MaxRetries int
	// RetryBackoff is the linear backoff step between attempts.
	RetryBackoff time.Duration
	// SetupAttempts bounds token entries during setup. 0 means unlimited.
	SetupAttempts int

	// LegacyFiles are scanned for plaintext tokens. Empty disables migration.
	LegacyFiles []string

	// OpenBrowser opens the token page during setup. Nil prints the URL instead.
	OpenBrowser func(url string) error

	// KeyMaterial binds the encryption key. Defaults to LocalKeyMaterial().
	KeyMaterial *KeyMaterial

	Sink     console.Sink
	Logger   *slog.Logger
	Resolver Resolver

	// Debug appends underlying error detail to user-facing failure messages.
	Debug bool

	// Now is the clock used for record timestamps.
	Now func() time.Time
}

// Store resolves, validates and persists the API token.
type Store struct {
	opts Options
	sink console.Sink
	key  KeyMaterial
}

// New creates a Store. No I/O is performed until the first call.
func New(opts Options) (*Store, error) {
	if opts.Records == nil {
		return nil, fmt.Errorf("missing record store")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = quip.DefaultBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBackoff < 0 {
		return nil, fmt.Errorf("negative retry backoff %s", opts.RetryBackoff)
	}
	if opts.SetupAttempts < 0 {
		return nil, fmt.Errorf("negative setup attempts %d", opts.SetupAttempts)
	}
	if opts.Sink == nil {
		opts.Sink = console.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Resolver == nil {
		opts.Resolver = net.DefaultResolver
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	key := LocalKeyMaterial()
	if opts.KeyMaterial != nil {
		key = *opts.KeyMaterial
	}

	return &Store{
		opts: opts,
		sink: opts.Sink,
		key:  key,
	}, nil
}

// Location describes where the record is kept.
func (s *Store) Location() string {
	return s.opts.Records.Location()
}

// GetToken returns a validated token, prompting for setup or migration if needed.
// The only error returned wraps ErrCredentialUnavailable.
func (s *Store) GetToken(ctx context.Context) (string, error) {
	token, _, err := s.GetValidatedToken(ctx)
	return token, err
}

// GetValidatedToken is GetToken that also returns the identity the token
// validated as.
func (s *Store) GetValidatedToken(ctx context.Context) (string, *quip.UserIdentity, error) {
	logger := s.opts.Logger

	if token, rec := s.load(ctx); token != "" {
		v := s.ValidateToken(ctx, token)
		if v.OK() {
			logger.DebugContext(ctx, "loaded valid token from secure storage", "user", v.Identity.DisplayName())
			s.touch(ctx, rec, v.Identity)
			return token, v.Identity, nil
		}
		logger.DebugContext(ctx, "stored token failed validation", "outcome", v.Outcome.String(), "error", v.Err)
		s.remove(ctx)
	}
	if err := ctx.Err(); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}

	entries, err := ScanLegacy(s.opts.LegacyFiles)
	if err != nil {
		logger.DebugContext(ctx, "legacy scan incomplete", "error", err)
	}
	if len(entries) > 0 {
		token, identity, err := s.migrate(ctx, entries)
		if err == nil {
			return token, identity, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrCredentialUnavailable, ctxErr)
		}
		logger.DebugContext(ctx, "migration did not produce a token", "error", err)
	}

	return s.setup(ctx)
}

// Persist encrypts token and replaces the stored record.
func (s *Store) Persist(ctx context.Context, token string, identity *quip.UserIdentity) error {
	if !shapeValid(token) {
		return errTokenTooShort
	}

	ciphertext, err := Encrypt(token, DeriveKey(s.key))
	if err != nil {
		return fmt.Errorf("encrypting token: %w", err)
	}

	now := s.opts.Now().UTC()
	data, err := encodeRecord(&StoredCredential{
		Version:        RecordVersion,
		EncryptedToken: ciphertext,
		CreatedAt:      now,
		LastUsed:       now,
		UserName:       identity.DisplayName(),
	})
	if err != nil {
		return err
	}

	if err := s.opts.Records.Write(ctx, data); err != nil {
		return fmt.Errorf("writing record to %s: %w", s.Location(), err)
	}
	s.opts.Logger.DebugContext(ctx, "token stored securely", "location", s.Location())
	return nil
}

// Remove deletes the stored record.
func (s *Store) Remove(ctx context.Context) error {
	return s.opts.Records.Delete(ctx)
}

// Status describes the stored record without contacting the platform.
type Status struct {
	Location string
	Present  bool
	// Readable is false when a record exists but would be discarded on next use.
	Readable bool
	Problem  error
	Record   *StoredCredential
}

// Status inspects the stored record. It never modifies storage.
func (s *Store) Status(ctx context.Context) (*Status, error) {
	st := &Status{Location: s.Location()}

	_, rec, err := s.readStored(ctx)
	switch {
	case err == nil:
		st.Present, st.Readable, st.Record = true, true, rec
	case errors.Is(err, tokenstore.ErrNotFound):
	case errors.Is(err, ErrStorageCorrupt):
		st.Present, st.Problem, st.Record = true, err, rec
	default:
		return nil, err
	}
	return st, nil
}

// readStored loads and decrypts the record. Errors wrap tokenstore.ErrNotFound,
// ErrStorageCorrupt or a context error. rec is returned when the JSON parsed,
// even if decryption failed.
func (s *Store) readStored(ctx context.Context) (string, *StoredCredential, error) {
	data, err := s.opts.Records.Read(ctx)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) || ctx.Err() != nil {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}

	token, ok := Decrypt(rec.EncryptedToken, DeriveKey(s.key))
	if !ok {
		return "", rec, fmt.Errorf("%w: decryption failed", ErrStorageCorrupt)
	}
	if !shapeValid(token) {
		return "", rec, fmt.Errorf("%w: decrypted token has invalid shape", ErrStorageCorrupt)
	}
	return token, rec, nil
}

// load returns the stored token, deleting the record if it is unusable.
func (s *Store) load(ctx context.Context) (string, *StoredCredential) {
	token, rec, err := s.readStored(ctx)
	if err == nil {
		return token, rec
	}
	if errors.Is(err, ErrStorageCorrupt) {
		s.opts.Logger.DebugContext(ctx, "discarding stored credential", "error", err)
		s.remove(ctx)
	}
	return "", nil
}

// touch records a successful use. Failure only costs the timestamp.
func (s *Store) touch(ctx context.Context, rec *StoredCredential, identity *quip.UserIdentity) {
	rec.LastUsed = s.opts.Now().UTC()
	if identity != nil && identity.Name != "" {
		rec.UserName = identity.Name
	}

	data, err := encodeRecord(rec)
	if err == nil {
		err = s.opts.Records.Write(ctx, data)
	}
	if err != nil {
		s.opts.Logger.WarnContext(ctx, "failed to update last_used", "error", err)
	}
}

func (s *Store) remove(ctx context.Context) {
	if err := s.opts.Records.Delete(ctx); err != nil {
		s.opts.Logger.WarnContext(ctx, "failed to remove stored credential", "location", s.Location(), "error", err)
		return
	}
	s.opts.Logger.DebugContext(ctx, "removed stored credential", "location", s.Location())
}

// detail renders err for users, verbosely only in debug mode.
func (s *Store) detail(msg string, err error) string {
	if s.opts.Debug && err != nil {
		return fmt.Sprintf("%s (%v)", msg, err)
	}
	return msg
}
