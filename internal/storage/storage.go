package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Filesystem is the minimal file API used to persist and purge previews.
type Filesystem interface {
	MkdirAll(ctx context.Context, dir string, perm fs.FileMode) error
	// PutContents writes data to name, replacing any existing file.
	PutContents(ctx context.Context, name string, data []byte) error
	// Delete removes name; a missing file is not an error.
	Delete(ctx context.Context, name string) error
	// RemoveAll removes dir and everything under it.
	RemoveAll(ctx context.Context, dir string) error
	// Glob returns names matching pattern, using path.Match syntax.
	Glob(ctx context.Context, pattern string) ([]string, error)
}

func cleanName(name string) (string, error) {
	cleaned := strings.TrimLeft(path.Clean(strings.ReplaceAll(name, "\\", "/")), "/")
	if cleaned == "" {
		return ".", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage path %q escapes root", name)
	}
	return cleaned, nil
}

// literalPrefix returns the part of pattern before its first metacharacter.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
