package indexer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hyperjump/kura/internal/extract"
)

// ScanOptions controls which files ScanDirectory returns.
type ScanOptions struct {
	// Recursive descends into subdirectories; by default only the top level is read.
	Recursive bool
	// Exclude holds doublestar patterns matched against paths relative to the
	// scanned directory, using forward slashes.
	Exclude []string
}

// ScanDirectory returns the regular files in dir whose extension is a supported
// format, sorted by path. Everything else is silently left out.
func ScanDirectory(dir string, opts ScanOptions) ([]string, error) {
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var files []string
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == absDir {
			return nil
		}
		rel, err := filepath.Rel(absDir, path)
		if err != nil {
			return err
		}
		excluded := matchesAny(opts.Exclude, filepath.ToSlash(rel))
		if d.IsDir() {
			if !opts.Recursive || excluded {
				return fs.SkipDir
			}
			return nil
		}
		if excluded {
			return nil
		}
		if _, ok := extract.FormatFromPath(path); !ok {
			return nil
		}
		// Follow symlinks, but only keep regular files.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// IsSupported reports whether path has a recognised document extension.
func IsSupported(path string) bool {
	_, ok := extract.FormatFromPath(path)
	return ok
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
