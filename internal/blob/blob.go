// CLAUDE:SUMMARY Atomic file storage under a root dir: tmp+rename writes, traversal guard, filename sanitizing.
// Package blob is the default file-storage collaborator. It persists raw
// fetched payloads under one root directory with atomic writes (write .tmp
// then rename) so a crashed writer never leaves a partial file visible.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store writes files under a fixed root directory.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir. The directory is created on first
// write if it does not exist.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Save writes data to filename under the root, creating subdirectories as
// needed, and returns the path relative to the root. Filenames escaping the
// root are rejected.
func (s *Store) Save(ctx context.Context, data []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := s.safePath(filename)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("blob: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("blob: rename: %w", err)
	}
	return clean, nil
}

// Open reads a previously saved file by its relative path.
func (s *Store) Open(path string) ([]byte, error) {
	clean, err := s.safePath(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.root, clean))
}

// Remove deletes a previously saved file by its relative path.
func (s *Store) Remove(path string) error {
	clean, err := s.safePath(path)
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.root, clean))
}

// safePath normalizes a user-influenced filename and rejects traversal.
func (s *Store) safePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("blob: empty filename")
	}
	clean := filepath.Clean(filepath.FromSlash(filename))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("blob: path %q escapes storage root", filename)
	}
	return clean, nil
}

// SanitizeName makes an arbitrary string safe as a single path segment:
// disallowed runes become underscores and length is capped.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		out = "file"
	}
	if len(out) > 128 {
		out = out[:128]
	}
	return out
}
