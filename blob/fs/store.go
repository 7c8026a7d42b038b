// Package fs stores blobs as files under a root directory, fanned out
// into subdirectories by a hash of the blob name to keep directory sizes
// bounded.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/inboxkit/mailstore/blob"
)

// Store keeps blobs on the local filesystem.
type Store struct {
	root    string
	dirMode os.FileMode
}

// Option configures the store.
type Option func(*Store)

// WithDirMode sets the permission bits for created directories.
func WithDirMode(mode os.FileMode) Option {
	return func(s *Store) { s.dirMode = mode }
}

// New creates a filesystem blob store rooted at dir. The root is created
// if missing.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{root: dir, dirMode: 0o750}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return nil, fmt.Errorf("fs: create root: %w", err)
	}
	return s, nil
}

// path fans blob names out under two levels of hash-derived directories.
// Blob names contain ':' and are hashed rather than used as path segments
// directly.
func (s *Store) path(name string) string {
	sum := sha256.Sum256([]byte(name))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(s.root, h[:2], h[2:4], h)
}

// Put writes content to a temp file in the target directory and renames
// it into place so readers never observe a partial blob.
func (s *Store) Put(ctx context.Context, name string, content io.Reader, size int64) error {
	dst := s.path(name)
	if err := os.MkdirAll(filepath.Dir(dst), s.dirMode); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Get opens the stored blob.
func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the blob file. Deleting a missing blob is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
