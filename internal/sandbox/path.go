// File: internal/sandbox/path.go

// Package sandbox enforces the security boundaries every session operates
// under: filesystem paths are confined to a per-session root, network
// targets are screened against private address space, and sensitive values
// are masked before they leave the process.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathEscapeError reports a path that resolves outside the sandbox root.
type PathEscapeError struct {
	Path string
	Root string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path %q escapes sandbox root %q", e.Path, e.Root)
}

// Confine resolves rel against root and guarantees the result stays inside
// root. Absolute inputs and ".." traversal that would land outside the root
// are rejected with a PathEscapeError. The root itself must be absolute.
func Confine(root, rel string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("sandbox root is not configured")
	}
	if !filepath.IsAbs(root) {
		return "", fmt.Errorf("sandbox root %q must be absolute", root)
	}
	if rel == "" {
		return "", &PathEscapeError{Path: rel, Root: root}
	}

	cleanRoot := resolveSymlinks(filepath.Clean(root))

	// Absolute inputs are only accepted when already inside the root.
	candidate := rel
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(cleanRoot, candidate)
	}
	candidate = resolveSymlinks(filepath.Clean(candidate))

	if candidate != cleanRoot && !strings.HasPrefix(candidate, cleanRoot+string(filepath.Separator)) {
		return "", &PathEscapeError{Path: rel, Root: root}
	}
	return candidate, nil
}

// resolveSymlinks canonicalizes path through any symlinks. The path itself
// may not exist yet, so resolution falls back to the deepest existing
// ancestor and rejoins the remaining components.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	dir, base := filepath.Split(filepath.Clean(path))
	dir = filepath.Clean(dir)
	if dir == path {
		return path
	}
	return filepath.Join(resolveSymlinks(dir), base)
}

// ConfineForWrite confines rel and creates any missing parent directories so
// the returned path is immediately writable.
func ConfineForWrite(root, rel string) (string, error) {
	path, err := Confine(root, rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("creating parent directories for %q: %w", path, err)
	}
	return path, nil
}

// SanitizeFilename reduces an arbitrary string to a safe single path
// component. Separators and control characters are replaced, and the result
// is truncated to a reasonable length.
func SanitizeFilename(name string) string {
	const maxLen = 128

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		out = "unnamed"
	}
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
