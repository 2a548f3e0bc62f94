package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

const (
	fileMode os.FileMode = 0600
	dirMode  os.FileMode = 0700
)

// FileStore provides atomic file-based record storage with owner-only permissions.
// Writes use temp file + rename for crash safety.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements RecordStore
var _ RecordStore = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path, creating parent directories
// with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	// MkdirAll leaves an existing directory untouched; tighten it explicitly.
	if err := restrictDir(dir); err != nil {
		return nil, fmt.Errorf("securing config directory %s: %w", dir, err)
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// Location returns the path of the record file.
func (f *FileStore) Location() string {
	return f.filePath
}

// Read returns the stored record. Returns ErrNotFound if the file doesn't exist,
// and an error if it is empty or has insecure permissions.
func (f *FileStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(f.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// Windows only reports the read-only bit, so the check is POSIX-only.
	if runtime.GOOS != "windows" && info.Mode().Perm() != fileMode {
		return nil, fmt.Errorf("insecure permissions on %s: %04o (expected %04o)", f.filePath, info.Mode().Perm(), fileMode)
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty record file %s", f.filePath)
	}
	return data, nil
}

// Write atomically saves the record using temp file + rename for crash safety.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileStore) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Create secure temp file in same directory for atomic rename
	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if err := tempFile.Chmod(fileMode); err != nil && runtime.GOOS != "windows" {
		return err
	}
	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// Atomic rename to final location
	if err := os.Rename(tempName, f.filePath); err != nil {
		return err
	}

	return restrictFile(ctx, f.filePath)
}

// Delete removes the record file. A missing file is not an error.
func (f *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(f.filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
