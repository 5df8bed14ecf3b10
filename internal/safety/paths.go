// Package safety confines the files the client writes to its working directory.
package safety

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathError is a machine-readable policy violation.
type PathError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string.
func (e PathError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Root resolves dir to an absolute, symlink-free path. An empty dir means the
// current working directory.
func Root(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs(%s): %w", dir, err)
	}
	// Fall back to the absolute path when the root does not exist yet.
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return abs, nil
}

// ValidateFilePath resolves p against absRoot and returns an absolute path that
// stays inside the root. Absolute inputs are accepted only when they already
// point inside the root. Paths under .git/ and the root itself are denied.
func ValidateFilePath(absRoot, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", PathError{Code: "ERR_EMPTY_PATH", Message: "path must not be empty"}
	}

	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absRoot, filepath.Clean(p))
	}

	// Resolve the leaf if it exists, else its parent, so a symlinked parent
	// directory cannot smuggle the file outside the root.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else if resolvedParent, err := filepath.EvalSymlinks(filepath.Dir(candidate)); err == nil {
		candidate = filepath.Join(resolvedParent, filepath.Base(candidate))
	}

	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", PathError{Code: "ERR_PATH_OUTSIDE_ROOT", Message: "path resolves outside the working directory"}
	}
	if rel == "." {
		return "", PathError{Code: "ERR_NOT_A_FILE", Message: "path is the working directory itself"}
	}

	relSlash := filepath.ToSlash(rel)
	if relSlash == ".git" || strings.HasPrefix(relSlash, ".git/") {
		return "", PathError{Code: "ERR_DENIED_PATH", Message: "paths under .git/ are not allowed"}
	}

	if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
		return "", PathError{Code: "ERR_NOT_A_FILE", Message: "path is a directory"}
	}

	return candidate, nil
}
