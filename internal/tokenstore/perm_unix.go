//go:build !windows

package tokenstore

import (
	"context"
	"os"
)

func restrictDir(dir string) error {
	return os.Chmod(dir, dirMode)
}

func restrictFile(_ context.Context, path string) error {
	return os.Chmod(path, fileMode)
}
