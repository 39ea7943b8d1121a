// Package storage writes uploaded artifacts to local disk, one sandbox
// directory per user.
//
// SANDBOX MODEL:
// Every user gets exactly one directory under the store root, derived from
// their internal ID: <root>/user_<id>. Every file that user uploads must
// resolve to a path inside that directory — that is the tenant-isolation
// guarantee at the filesystem level. The guarantee is enforced twice:
//
//  1. Proactively: the stored filename is rebuilt from an allow-list, so
//     traversal payloads like "../../evil.csv" are stripped to "evil.csv"
//     before any path is formed.
//  2. Defensively: after the file lands on disk, its canonical path (symlinks
//     resolved) is checked to be a descendant of the sandbox. If any future
//     change to the sanitizer lets something through, the file is deleted
//     and the upload fails rather than living outside the sandbox.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/datachat/internal/apperror"
)

// unsafeChars matches everything outside the stored-filename allow-list.
// Alphanumerics, dot, underscore and hyphen survive; the rest — including
// path separators — is stripped.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Store persists uploaded files under a single root directory.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir, creating it if absent.
// The root is made absolute once here so later containment checks compare
// canonical paths against a canonical base.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolving root %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating root %q: %w", abs, err)
	}
	return &Store{root: abs}, nil
}

// UserDir returns the sandbox directory for a user, creating it on first use.
func (s *Store) UserDir(userID string) (string, error) {
	dir := filepath.Join(s.root, "user_"+userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: creating user dir: %w", err)
	}
	return dir, nil
}

// Save writes the uploaded stream into the user's sandbox and returns the
// canonical absolute path of the stored file.
//
// STORED NAME = <unix-nanos>_<sanitized original name>.
// The timestamp prefix makes the name unique per upload, so re-uploading
// "data.csv" never overwrites the previous copy, and no two requests ever
// write to the same destination (O_EXCL backs that up).
func (s *Store) Save(userID, originalName string, r io.Reader) (string, error) {
	dir, err := s.UserDir(userID)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), SanitizeFilename(originalName))
	dest := filepath.Join(dir, name)

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: creating %q: %w", dest, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("storage: writing %q: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("storage: closing %q: %w", dest, err)
	}

	canonical, err := s.verifyInSandbox(dir, dest)
	if err != nil {
		// Treat as a security violation: something got past the sanitizer.
		// The file must not survive outside the sandbox.
		os.Remove(dest)
		return "", err
	}

	return canonical, nil
}

// Remove deletes a stored file. Best-effort cleanup: callers ignore the error
// when the file is already the casualty of a failed upload.
func (s *Store) Remove(path string) error {
	return os.Remove(path)
}

// verifyInSandbox resolves the stored file's canonical path and confirms it
// is a descendant of the user's sandbox directory. Returns the canonical path.
//
// EvalSymlinks matters here: a symlink inside the sandbox could otherwise
// point a "contained" path anywhere on disk.
func (s *Store) verifyInSandbox(sandbox, path string) (string, error) {
	canonicalSandbox, err := filepath.EvalSymlinks(sandbox)
	if err != nil {
		return "", fmt.Errorf("storage: resolving sandbox %q: %w", sandbox, err)
	}
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("storage: resolving %q: %w", path, err)
	}

	rel, err := filepath.Rel(canonicalSandbox, canonical)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: %q resolves outside sandbox %q: %w",
			path, sandbox, apperror.SecurityViolation())
	}

	return canonical, nil
}

// SanitizeFilename rebuilds a client-supplied filename from the allow-list.
//
// filepath.Base goes first so "dir/file.csv" keeps only "file.csv"; the
// regexp then strips anything exotic. A name reduced to nothing (or to
// dot-only, which Base produces for "." and "..") falls back to "upload".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeChars.ReplaceAllString(name, "")
	if name == "" || strings.Trim(name, ".") == "" {
		return "upload"
	}
	return name
}
