// Package testutil provides in-memory fakes for handler and service
// tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/file-parser/backend/internal/storage"
)

// MemBlobStore implements storage.BlobStore entirely in memory.
type MemBlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailSave, when set, makes Save return this error.
	FailSave error
}

// NewMemBlobStore creates an empty MemBlobStore.
func NewMemBlobStore() *MemBlobStore {
	return &MemBlobStore{data: make(map[string][]byte)}
}

var _ storage.BlobStore = (*MemBlobStore)(nil)

func (m *MemBlobStore) Save(_ context.Context, key string, r io.Reader) (string, int64, error) {
	if m.FailSave != nil {
		return "", 0, m.FailSave
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return key, int64(len(data)), nil
}

func (m *MemBlobStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[locator]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemBlobStore) Remove(_ context.Context, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, locator)
	return nil
}

// Has reports whether bytes exist at locator.
func (m *MemBlobStore) Has(locator string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[locator]
	return ok
}

// Put seeds bytes directly at a locator.
func (m *MemBlobStore) Put(locator string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[locator] = data
}
