package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pkg/browser"

	"github.com/cdprunbooker/runbooker/internal/console"
	"github.com/cdprunbooker/runbooker/internal/credstore"
	"github.com/cdprunbooker/runbooker/internal/quip"
)

// ErrDiagnosticsFailed is returned by Diagnose when any check fails.
var ErrDiagnosticsFailed = errors.New("token diagnostics failed")

// App wires configuration, storage, the platform client and the console
// into the credential commands.
type App struct {
	cfg        *Config
	sink       console.Sink
	store      *credstore.Store
	clientOpts []quip.Option
}

// Option configures an App.
type Option func(*options)

type options struct {
	clientOptions []quip.Option
	openBrowser   func(string) error
	keyMaterial   *credstore.KeyMaterial
}

// WithClientOptions passes extra options to every platform client.
func WithClientOptions(opts ...quip.Option) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

// WithBrowser replaces the system browser launcher.
func WithBrowser(open func(string) error) Option {
	return func(o *options) {
		o.openBrowser = open
	}
}

// WithKeyMaterial pins the encryption key tuple instead of reading it from the host.
func WithKeyMaterial(m credstore.KeyMaterial) Option {
	return func(o *options) {
		o.keyMaterial = &m
	}
}

// New creates a new App instance. No I/O against the record or the
// platform is performed until a command runs.
func New(cfg *Config, sink console.Sink, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if sink == nil {
		sink = console.Discard{}
	}

	o := &options{openBrowser: browser.OpenURL}
	for _, opt := range opts {
		opt(o)
	}
	if cfg.Credentials.NoBrowser {
		o.openBrowser = nil
	}

	records, err := cfg.Credentials.NewRecordStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create record store: %w", err)
	}

	clientOpts := append([]quip.Option{
		quip.WithTimeouts(cfg.API.ConnectTimeout, cfg.API.ReadTimeout),
	}, o.clientOptions...)

	store, err := credstore.New(credstore.Options{
		Records:       records,
		BaseURL:       cfg.API.BaseURL,
		TokenURL:      cfg.API.TokenURL,
		ClientOptions: clientOpts,
		MaxRetries:    cfg.Credentials.MaxRetries,
		RetryBackoff:  cfg.Credentials.RetryBackoff,
		SetupAttempts: cfg.Credentials.SetupAttempts,
		LegacyFiles:   cfg.legacyFiles(),
		OpenBrowser:   o.openBrowser,
		KeyMaterial:   o.keyMaterial,
		Sink:          sink,
		Logger:        slog.Default(),
		Debug:         cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	return &App{
		cfg:        cfg,
		sink:       sink,
		store:      store,
		clientOpts: clientOpts,
	}, nil
}

// Store returns the credential store for callers that need a token directly.
func (a *App) Store() *credstore.Store {
	return a.store
}

// Login makes sure a valid token is stored, running migration or setup if needed.
// With force, any existing record is discarded first.
func (a *App) Login(ctx context.Context, force bool) error {
	if force {
		if err := a.store.Remove(ctx); err != nil {
			return fmt.Errorf("removing existing record: %w", err)
		}
		slog.DebugContext(ctx, "existing record removed before login", "location", a.store.Location())
	}

	_, identity, err := a.store.GetValidatedToken(ctx)
	if err != nil {
		return err
	}

	a.sink.Success("Authenticated as: " + identity.DisplayName())
	a.sink.Info("Token stored in " + a.store.Location())
	return nil
}

// WhoAmI resolves the token the way document workflows do and prints the
// identity the platform reports for it.
func (a *App) WhoAmI(ctx context.Context) (*quip.UserIdentity, error) {
	source, err := NewCredentialTokenSource(ctx, a.store)
	if err != nil {
		return nil, err
	}

	opts := append(slices.Clone(a.clientOpts), quip.WithTokenSource(source))

	client, err := quip.NewClient(a.cfg.API.BaseURL, "", opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create platform client: %w", err)
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}

	a.sink.Info("Name: " + user.DisplayName())
	a.sink.Info("ID: " + user.ID)
	for _, email := range user.Emails {
		a.sink.Info("Email: " + email)
	}
	return user, nil
}

// Diagnose runs the connectivity and token checks. An empty token selects the stored one.
func (a *App) Diagnose(ctx context.Context, token string) error {
	if !a.store.Diagnose(ctx, token) {
		return ErrDiagnosticsFailed
	}
	return nil
}

// Status prints what is stored without contacting the platform.
func (a *App) Status(ctx context.Context) error {
	st, err := a.store.Status(ctx)
	if err != nil {
		return fmt.Errorf("reading record: %w", err)
	}

	a.sink.Header("Credential Status")
	a.sink.Info("Location: " + st.Location)

	switch {
	case !st.Present:
		a.sink.Warning("No token stored. Run the login command to set one up.")
	case !st.Readable:
		msg := "Stored record is unreadable and will be replaced on next use."
		if a.cfg.Debug && st.Problem != nil {
			msg = fmt.Sprintf("%s (%v)", msg, st.Problem)
		}
		a.sink.Warning(msg)
	default:
		a.sink.Success("Encrypted token stored")
		a.sink.Info("User: " + st.Record.UserName)
		a.sink.Info("Created: " + st.Record.CreatedAt.Local().Format(time.RFC1123))
		a.sink.Info("Last used: " + st.Record.LastUsed.Local().Format(time.RFC1123))
	}
	return nil
}

// Logout deletes the stored record.
func (a *App) Logout(ctx context.Context) error {
	if err := a.store.Remove(ctx); err != nil {
		return fmt.Errorf("removing record: %w", err)
	}
	a.sink.Success("Stored token removed from " + a.store.Location())
	return nil
}
