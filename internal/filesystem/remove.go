package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// RemoveFile deletes path. A file that is already gone counts as removed.
func RemoveFile(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MoveFile moves src to dst, creating dst's parent directories. A missing src
// counts as moved. Moves across mount points fall back to copy+delete.
func MoveFile(src, dst string) error {
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil { //nolint:gosec // G301: quarantine directories mirror the library layout
		return fmt.Errorf("creating destination directory: %w", err)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("destination already exists: %s", dst)
	}
	return renameSafe(src, dst)
}

// Within reports whether path is root or lies under it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// QuarantinePath maps a library file under root to the same relative location
// under quarantine. Files outside root keep their base name only.
func QuarantinePath(root, quarantine, path string) string {
	rel := filepath.Base(path)
	if Within(root, path) {
		rel, _ = filepath.Rel(root, path)
	}
	return filepath.Join(quarantine, rel)
}
