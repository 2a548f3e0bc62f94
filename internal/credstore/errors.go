package credstore

import "errors"

var (
	// ErrCredentialUnavailable means no token could be obtained: setup was
	// declined, aborted or ran out of attempts.
	ErrCredentialUnavailable = errors.New("no API token available")

	// ErrSetupCanceled marks an interrupted setup. It is always wrapped in
	// ErrCredentialUnavailable.
	ErrSetupCanceled = errors.New("token setup canceled")

	// ErrStorageCorrupt marks a record that could not be read, parsed or decrypted.
	ErrStorageCorrupt = errors.New("stored credential corrupt")

	// ErrValidationFailed marks a token rejected by the platform.
	ErrValidationFailed = errors.New("token validation failed")

	// ErrTransient marks a network or availability failure that outlived the retry budget.
	ErrTransient = errors.New("transient network error")

	// ErrMigrationAborted means legacy migration was declined or found no usable token.
	ErrMigrationAborted = errors.New("legacy token migration aborted")

	errTokenTooShort = errors.New("token too short")
	errMissingID     = errors.New("identity payload has no id")
)
