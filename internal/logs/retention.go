package logs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Prune removes files in dir matching pattern that were last modified more
// than maxAge ago. keep is never pruned. It returns the removed paths; a
// non-positive maxAge disables pruning.
func Prune(dir, pattern string, maxAge time.Duration, keep string, now time.Time) ([]string, error) {
	if maxAge <= 0 || dir == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("match %q: %w", pattern, err)
	}
	sort.Strings(matches)

	cutoff := now.Add(-maxAge)
	var removed []string
	var errs []error
	for _, path := range matches {
		if keep != "" && filepath.Clean(path) == filepath.Clean(keep) {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
