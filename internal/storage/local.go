package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalBlobStore keeps uploaded bytes on the local filesystem, one
// file per key inside uploadDir.
type LocalBlobStore struct {
	uploadDir string
}

// NewLocalBlobStore creates uploadDir if needed.
func NewLocalBlobStore(uploadDir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalBlobStore{uploadDir: uploadDir}, nil
}

var _ BlobStore = (*LocalBlobStore)(nil)

// Save writes r to a file named after key. The key doubles as the
// locator; the directory stays an implementation detail.
func (s *LocalBlobStore) Save(_ context.Context, key string, r io.Reader) (string, int64, error) {
	path := filepath.Join(s.uploadDir, key)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("writing file: %w", err)
	}

	return key, size, nil
}

// Open opens the file at locator.
func (s *LocalBlobStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.uploadDir, locator))
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// Remove deletes the file at locator.
func (s *LocalBlobStore) Remove(_ context.Context, locator string) error {
	if err := os.Remove(filepath.Join(s.uploadDir, locator)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
