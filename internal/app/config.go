package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cdprunbooker/runbooker/internal/credstore"
	"github.com/cdprunbooker/runbooker/internal/quip"
	"github.com/cdprunbooker/runbooker/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	// LogFormatOTel routes records through the OpenTelemetry log SDK to stdout.
	LogFormatOTel LogFormat = "otel"
	// LogFormatOTLP exports records to an OTLP collector configured via OTEL_EXPORTER_OTLP_* variables.
	LogFormatOTLP LogFormat = "otlp"
)

// TokenStorageType represents where the encrypted record is kept.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat      = LogFormatText
	DefaultConfigAPIBaseURL     = quip.DefaultBaseURL
	DefaultConfigAPITokenURL    = credstore.DefaultTokenURL
	DefaultConfigConnectTimeout = quip.DefaultConnectTimeout
	DefaultConfigReadTimeout    = quip.DefaultReadTimeout
	DefaultConfigStorage        = TokenStorageTypeFile
	DefaultConfigMaxRetries     = credstore.DefaultMaxRetries
	DefaultConfigRetryBackoff   = credstore.DefaultRetryBackoff

	// configDirName is shared with earlier releases so existing records are found.
	configDirName  = "cdp-runbooker"
	configFileName = "config.json"
	keyringService = "cdp-runbooker-token"
	legacyShellEnv = "SHELL"
)

// APIConfig holds platform endpoint configuration.
type APIConfig struct {
	BaseURL        string        `json:"base_url" validate:"required,url"`
	TokenURL       string        `json:"token_url" validate:"required,url"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout"`
}

// CredentialsConfig describes how the token is stored and validated.
type CredentialsConfig struct {
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file keyring"`

	// Storage-specific settings
	File        string `json:"file,omitempty"`         // For file storage: path to the record
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier

	MaxRetries   int           `json:"max_retries" validate:"gte=1"`
	RetryBackoff time.Duration `json:"retry_backoff"`
	// SetupAttempts bounds interactive token entries; 0 means unlimited.
	SetupAttempts int  `json:"setup_attempts" validate:"gte=0"`
	NoBrowser     bool `json:"no_browser"`
}

// LegacyConfig controls discovery of plaintext tokens in shell configuration files.
type LegacyConfig struct {
	Disabled bool     `json:"disabled"`
	Files    []string `json:"files,omitempty"`
}

// NewRecordStore creates the RecordStore selected by the credentials configuration.
func (c *CredentialsConfig) NewRecordStore() (tokenstore.RecordStore, error) {
	switch c.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(c.File)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(keyringService, c.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level `json:"log_level"`
	LogFormat LogFormat  `json:"log_format" validate:"oneof=text json otel otlp"`
	// Debug forces debug logging and adds error detail to user-facing messages.
	Debug       bool              `json:"debug"`
	API         APIConfig         `json:"api"`
	Credentials CredentialsConfig `json:"credentials"`
	Legacy      LegacyConfig      `json:"legacy"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Debug {
		c.LogLevel = slog.LevelDebug
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.API.TokenURL == "" {
		c.API.TokenURL = DefaultConfigAPITokenURL
	}
	if c.API.ConnectTimeout == 0 {
		c.API.ConnectTimeout = DefaultConfigConnectTimeout
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = DefaultConfigReadTimeout
	}
	if c.Credentials.Storage == "" {
		c.Credentials.Storage = DefaultConfigStorage
	}
	if c.Credentials.MaxRetries == 0 {
		c.Credentials.MaxRetries = DefaultConfigMaxRetries
	}
	if c.Credentials.RetryBackoff == 0 {
		c.Credentials.RetryBackoff = DefaultConfigRetryBackoff
	}

	// Dynamic defaults based on storage type
	switch c.Credentials.Storage {
	case TokenStorageTypeFile:
		if c.Credentials.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("credentials.file required (auto-detect failed: %w)", err)
			}
			c.Credentials.File = filepath.Join(configDir, configDirName, configFileName)
		}
	case TokenStorageTypeKeyring:
		if c.Credentials.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("credentials.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Credentials.KeyringUser = currentUser.Username
		}
	}

	if !c.Legacy.Disabled && len(c.Legacy.Files) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			// Nothing to scan without a home directory.
			c.Legacy.Disabled = true
		} else {
			c.Legacy.Files = credstore.DefaultLegacyFiles(home, os.Getenv(legacyShellEnv))
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.API.ConnectTimeout < 0 || c.API.ReadTimeout < 0 {
		return errors.New("api timeouts must not be negative")
	}
	if c.Credentials.RetryBackoff < 0 {
		return errors.New("credentials.retry_backoff must not be negative")
	}

	switch c.Credentials.Storage {
	case TokenStorageTypeFile:
		if c.Credentials.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeKeyring:
		if c.Credentials.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// legacyFiles returns the files to scan, or nil when discovery is disabled.
func (c *Config) legacyFiles() []string {
	if c.Legacy.Disabled {
		return nil
	}
	return c.Legacy.Files
}
