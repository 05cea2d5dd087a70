// Package fsutil holds small filesystem helpers for locating input
// artifacts.
package fsutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sinogen/internal/stack"
)

// IsArtifact reports whether path has a registered artifact extension.
func IsArtifact(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range stack.Extensions() {
		if ext == known {
			return true
		}
	}
	return false
}

// ListArtifacts returns all readable input artifacts under root, sorted by
// path. Scan lines are acquired in file order, so the sort keeps the stack
// ordering stable across runs.
func ListArtifacts(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if IsArtifact(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// FirstExisting returns the first path that exists.
func FirstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
