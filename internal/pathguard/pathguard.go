// Package pathguard resolves and confines every tool-visible path to a
// workspace root (spec.md §4.1, component C1).
package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrPathEscape is returned when a resolved path falls outside root.
var ErrPathEscape = errors.New("pathguard: path escapes workspace root")

// Resolve expands home-directory shorthand, resolves relative paths
// against root, canonicalises the result (collapsing "." and "..",
// following existing symlinks), and verifies the canonical form is
// lexically inside the canonical root at a path-separator boundary.
//
// Every tool that accepts a path must call Resolve before any I/O.
func Resolve(path, root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("pathguard: empty workspace root")
	}

	expanded, err := expandHome(path)
	if err != nil {
		return "", fmt.Errorf("pathguard: expand home dir: %w", err)
	}

	var resolved string
	if filepath.IsAbs(expanded) {
		resolved = filepath.Clean(expanded)
	} else {
		resolved = filepath.Clean(filepath.Join(root, expanded))
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("pathguard: resolve workspace root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		// Root need not exist yet on disk; fall back to the cleaned abs path.
		realRoot = absRoot
	}

	absResolved, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("pathguard: resolve target path: %w", err)
	}
	realResolved := resolveExisting(absResolved)

	cmpRoot, cmpResolved := realRoot, realResolved
	if runtime.GOOS == "windows" {
		cmpRoot = strings.ToLower(cmpRoot)
		cmpResolved = strings.ToLower(cmpResolved)
	}

	if !withinBoundary(cmpResolved, cmpRoot) {
		return "", fmt.Errorf("%w: %q is outside %q", ErrPathEscape, realResolved, realRoot)
	}
	return realResolved, nil
}

// withinBoundary reports whether target equals root or is nested under
// root at a path-separator boundary (preventing "/workspace-evil" from
// being treated as inside "/workspace").
func withinBoundary(target, root string) bool {
	if target == root {
		return true
	}
	sep := string(os.PathSeparator)
	return strings.HasPrefix(target, strings.TrimSuffix(root, sep)+sep)
}

// resolveExisting walks up the path until it finds a segment that exists,
// resolves symlinks on that prefix, and reattaches the remaining (possibly
// not-yet-created) suffix. This catches symlinks inside the workspace that
// point outside it, while still allowing writes that create new files.
func resolveExisting(path string) string {
	cur := path
	var suffix []string
	for {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			if len(suffix) == 0 {
				return real
			}
			return filepath.Join(append([]string{real}, suffix...)...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path // reached filesystem root without finding an existing segment
		}
		suffix = append([]string{filepath.Base(cur)}, suffix...)
		cur = parent
	}
}

// expandHome expands a leading "~" or "~/..." to the current user's home
// directory. Paths not starting with "~" are returned unchanged.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	if len(path) > 1 && path[1] != '/' && path[1] != os.PathSeparator {
		// "~otheruser/..." is not supported; leave it to fail naturally.
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}
