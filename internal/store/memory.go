package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/file-parser/backend/internal/models"
)

// MemoryStore is an in-memory Store guarded by a RWMutex. It backs
// single-process deployments and tests; the DuckStore provides the
// durable variant.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*models.File
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]*models.File),
	}
}

var _ Store = (*MemoryStore)(nil)

// Create inserts a new record, assigning an id and timestamps.
func (s *MemoryStore) Create(_ context.Context, f *models.File) (*models.File, error) {
	rec := f.Clone()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = models.StatusUploading
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rec.ID] = rec

	return rec.Clone(), nil
}

// Get retrieves a record by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Update applies a partial mutation atomically under the write lock.
func (s *MemoryStore) Update(_ context.Context, id string, upd FileUpdate) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := validateUpdate(rec, upd); err != nil {
		return nil, err
	}

	applyUpdate(rec, upd)
	rec.UpdatedAt = time.Now().UTC()

	return rec.Clone(), nil
}

// Delete removes a record. Returns false when no record existed.
func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return false, nil
	}
	delete(s.files, id)
	return true, nil
}

// List returns records newest first, with the total count before
// pagination.
func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*models.File, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.File
	for _, rec := range s.files {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		all = append(all, rec)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)

	if filter.Offset >= len(all) {
		return []*models.File{}, total, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}

	out := make([]*models.File, 0, len(all))
	for _, rec := range all {
		out = append(out, rec.Clone())
	}
	return out, total, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
