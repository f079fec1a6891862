// Package fileid canonicalizes file paths so that one file always maps to one
// stored document, whichever way it was named on the command line.
package fileid

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// NewID returns a fresh identifier for a document or fragment.
func NewID() string {
	return uuid.New().String()
}

// IsID reports whether s has the form of an identifier returned by NewID.
func IsID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// CanonicalPath returns the absolute, cleaned form of path with symlinks
// resolved. If the path cannot be resolved (for example it no longer
// exists) the cleaned absolute path is returned.
func CanonicalPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}
