package tokenstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no record has been stored yet.
var ErrNotFound = errors.New("record not found")

// RecordStore reads, writes and deletes a single serialized record.
type RecordStore interface {
	// Read returns the stored bytes. Returns ErrNotFound if nothing is stored.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored record.
	Write(ctx context.Context, data []byte) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context) error

	// Location describes where the record lives, for user-facing messages.
	Location() string
}
