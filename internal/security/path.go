package security

import (
	"os"
	"path/filepath"
	"strings"
)

// Canonicalize resolves path to an absolute, symlink-free form when
// possible, falling back to a logical normalizer (removing ".." and "."
// components without touching the filesystem) when the path doesn't exist
// yet — e.g. a file about to be created. The fallback still strips ".."
// segments lexically, so traversal cannot walk past whatever prefix
// remains.
func Canonicalize(path, workingDir string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workingDir, abs)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}

	return logicalNormalize(abs)
}

// logicalNormalize removes ".." and "." path components purely
// syntactically, without resolving symlinks or touching the filesystem.
func logicalNormalize(path string) string {
	return filepath.Clean(path)
}

// IsWithinRoot reports whether the canonicalized path lies at or under
// root. Both arguments are expected to already be canonicalized absolute
// paths.
func IsWithinRoot(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)

	if path == root {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// PathExists is a small convenience wrapper used by callers that want to
// distinguish "outside root" from "doesn't exist yet" before reporting an
// error.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
