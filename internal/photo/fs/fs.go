// Package fs stores photos on local disk.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crimson-sun/kartavya/internal/photo"
)

// URLPrefix is the path the HTTP server serves the photo directory under.
const URLPrefix = "/photos/"

// Store writes photos into a directory.
type Store struct {
	dir string
}

// New creates the directory if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("photo/fs: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory photos are written to.
func (s *Store) Dir() string { return s.dir }

// Put writes data to <dir>/<name> and returns its URL.
func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := photo.CheckName(name); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("photo/fs: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("photo/fs: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("photo/fs: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("photo/fs: rename: %w", err)
	}
	return URLPrefix + name, nil
}
