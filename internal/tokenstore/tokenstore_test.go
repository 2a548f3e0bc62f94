package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "cdp-runbooker")
	path := filepath.Join(dir, "config.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.Equal(t, path, store.Location())

	t.Run("missing file reports not found", func(t *testing.T) {
		_, err := store.Read(ctx)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("write then read", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, []byte(`{"version":"1.0"}`)))

		got, err := store.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, `{"version":"1.0"}`, string(got))
	})

	t.Run("overwrite leaves no temp files", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, []byte("second")))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "config.json", entries[0].Name())
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx))
		require.NoError(t, store.Delete(ctx))

		_, err := store.Read(ctx)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFileStorePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions only")
	}
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cfg")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "config.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, []byte("data")))

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	fileInfo, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fileInfo.Mode().Perm())

	// A loosened file is refused rather than trusted.
	require.NoError(t, os.Chmod(path, 0o644))
	_, err = store.Read(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRejectsEmpty(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestFileStoreCanceledContext(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Write(ctx, []byte("x")), context.Canceled)
	_, err = store.Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	_, err := NewKeyringStore("", "alice")
	require.Error(t, err)
	_, err = NewKeyringStore("svc", "")
	require.Error(t, err)

	store, err := NewKeyringStore("cdp-runbooker", "alice")
	require.NoError(t, err)

	_, err = store.Read(ctx)
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	require.NoError(t, store.Write(ctx, []byte("record")))
	got, err := store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "record", string(got))

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))
	_, err = store.Read(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}
