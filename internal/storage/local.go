package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Local stores files under a root directory.
type Local struct {
	root string
}

var _ Filesystem = (*Local)(nil)

// NewLocal returns a filesystem rooted at root.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Root returns the backing directory.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) resolve(name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(cleaned)), nil
}

func (l *Local) MkdirAll(_ context.Context, dir string, perm fs.FileMode) error {
	target, err := l.resolve(dir)
	if err != nil {
		return err
	}
	return os.MkdirAll(target, perm)
}

// PutContents writes through a temp file and rename so readers never see a
// partially written image.
func (l *Local) PutContents(_ context.Context, name string, data []byte) error {
	target, err := l.resolve(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(target)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (l *Local) Delete(_ context.Context, name string) error {
	target, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) RemoveAll(_ context.Context, dir string) error {
	target, err := l.resolve(dir)
	if err != nil {
		return err
	}
	return os.RemoveAll(target)
}

func (l *Local) Glob(_ context.Context, pattern string) ([]string, error) {
	cleaned, err := cleanName(pattern)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(l.root, filepath.FromSlash(cleaned)))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		rel, err := filepath.Rel(l.root, match)
		if err != nil {
			return nil, err
		}
		names = append(names, filepath.ToSlash(rel))
	}
	return names, nil
}
