// Package cache accelerates progress polling. The record store stays
// the source of truth; cached snapshots are best effort.
package cache

import (
	"context"

	"github.com/file-parser/backend/internal/models"
)

// ProgressCache holds recent progress snapshots keyed by file id.
type ProgressCache interface {
	// Get returns the cached snapshot, or nil when absent.
	Get(ctx context.Context, fileID string) (*models.FileProgress, error)
	// Set stores a snapshot.
	Set(ctx context.Context, p *models.FileProgress) error
	// Delete removes a snapshot.
	Delete(ctx context.Context, fileID string) error
	Close() error
}

// Noop is the cache used when no backend is configured.
type Noop struct{}

var _ ProgressCache = Noop{}

func (Noop) Get(context.Context, string) (*models.FileProgress, error) { return nil, nil }
func (Noop) Set(context.Context, *models.FileProgress) error           { return nil }
func (Noop) Delete(context.Context, string) error                      { return nil }
func (Noop) Close() error                                              { return nil }
