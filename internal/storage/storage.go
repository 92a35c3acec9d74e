// Package storage persists raw uploaded bytes. Stored artifacts are
// temporary: the worker removes them once a job reaches a terminal
// state.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned when no bytes exist at a locator.
var ErrBlobNotFound = errors.New("stored file not found")

// BlobStore stores uploaded bytes under an opaque locator. The
// locator travels in the parse job payload; only this package
// interprets it.
type BlobStore interface {
	// Save writes r under key and returns the locator plus the number
	// of bytes written.
	Save(ctx context.Context, key string, r io.Reader) (string, int64, error)
	// Open returns a reader over the bytes at locator.
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	// Remove deletes the bytes at locator. Removing an absent blob is
	// not an error.
	Remove(ctx context.Context, locator string) error
}
