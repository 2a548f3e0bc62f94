package credstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// LegacySentinel is the comment older releases wrote above the exported token.
	LegacySentinel = "# Added by CDP Runbooker"

	// LegacyExportPrefix starts the line that followed the sentinel.
	LegacyExportPrefix = "export QUIP_API_TOKEN="
)

// LegacyEntry is a plaintext token found in a shell configuration file.
type LegacyEntry struct {
	Path  string
	Token string
}

// DefaultLegacyFiles returns the shell configuration files older releases may
// have written to, chosen by the login shell.
func DefaultLegacyFiles(home, shell string) []string {
	var names []string
	switch {
	case strings.Contains(shell, "zsh"):
		names = []string{".zshrc", ".zprofile"}
	case strings.Contains(shell, "bash"):
		names = []string{".bashrc", ".bash_profile"}
	default:
		names = []string{".zshrc", ".bashrc", ".bash_profile", ".zprofile"}
	}

	files := make([]string, 0, len(names))
	for _, name := range names {
		files = append(files, filepath.Join(home, name))
	}
	return files
}

// ScanLegacy returns at most one entry per file, in the order of files.
// Missing files are skipped; other read errors are returned alongside
// whatever was found.
func ScanLegacy(files []string) ([]LegacyEntry, error) {
	var (
		entries []LegacyEntry
		errs    []error
	)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("reading %s: %w", path, err))
			}
			continue
		}

		lines := strings.SplitAfter(string(data), "\n")
		if idx, token := findLegacyPair(lines); idx >= 0 {
			entries = append(entries, LegacyEntry{Path: path, Token: token})
		}
	}
	return entries, errors.Join(errs...)
}

// findLegacyPair returns the index of the first sentinel line whose next line
// exports a usable token, or -1.
func findLegacyPair(lines []string) (int, string) {
	for i := 0; i+1 < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != LegacySentinel {
			continue
		}
		next := strings.TrimSpace(lines[i+1])
		if !strings.HasPrefix(next, LegacyExportPrefix) {
			continue
		}
		if token, ok := extractLegacyToken(next); ok {
			return i, token
		}
	}
	return -1, ""
}

// extractLegacyToken pulls the value out of an export line, stripping one
// layer of matching single or double quotes.
func extractLegacyToken(line string) (string, bool) {
	_, value, found := strings.Cut(line, "=")
	if !found {
		return "", false
	}
	value = strings.TrimSpace(value)

	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			value = value[1 : len(value)-1]
		}
	}

	if !shapeValid(value) {
		return "", false
	}
	return value, true
}

// removeLegacyEntry deletes the first sentinel/export pair from path and
// reports whether the file changed. Every other byte is preserved. Symlinks
// are resolved first so a linked dotfile keeps its link and the target is
// replaced atomically.
func removeLegacyEntry(path string) (bool, error) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return false, err
	}

	lines := strings.SplitAfter(string(data), "\n")
	idx, _ := findLegacyPair(lines)
	if idx < 0 {
		return false, nil
	}

	kept := make([]string, 0, len(lines)-2)
	kept = append(kept, lines[:idx]...)
	kept = append(kept, lines[idx+2:]...)

	if err := replaceFile(target, []byte(strings.Join(kept, "")), info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

// replaceFile writes data to a temp file beside path and renames it over path.
func replaceFile(path string, data []byte, perm fs.FileMode) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if err := tempFile.Chmod(perm); err != nil && runtime.GOOS != "windows" {
		return err
	}
	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	return os.Rename(tempName, path)
}
