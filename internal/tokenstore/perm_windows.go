//go:build windows

package tokenstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/windows"
)

// Windows has no POSIX mode bits. Directories are left to the profile ACLs;
// the record file is kept writable and marked hidden on a best-effort basis.
func restrictDir(string) error {
	return nil
}

func restrictFile(ctx context.Context, path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("encoding record path %q: %w", path, err)
	}
	if err := os.Chmod(path, fileMode); err != nil {
		return err
	}
	if err := windows.SetFileAttributes(p, windows.FILE_ATTRIBUTE_HIDDEN); err != nil {
		slog.WarnContext(ctx, "failed to mark record file hidden", "path", path, "error", err)
	}
	return nil
}
