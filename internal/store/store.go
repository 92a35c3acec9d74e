// Package store provides the durable record store for File entities.
// It is the single source of truth for status, progress and content.
package store

import (
	"context"
	"errors"

	"github.com/file-parser/backend/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("file not found")
	// ErrTerminalState is returned when an update would move a record
	// out of a terminal state. Terminal records are immutable.
	ErrTerminalState = errors.New("file is in a terminal state")
	// ErrInvalidTransition is returned for status changes the
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrProgressRegression is returned when a non-terminal update
	// would move progress backwards. Only the terminal failed commit
	// may reset progress.
	ErrProgressRegression = errors.New("progress may not decrease")
)

// FileUpdate describes a partial mutation of a File record. Nil fields
// are left unchanged. All set fields are committed in a single atomic
// record mutation, so readers never observe a half-applied update.
type FileUpdate struct {
	Status   *models.FileStatus
	Progress *int
	Content  map[string]any
	Error    *string

	// ClearContent / ClearError remove the field rather than leaving
	// it unchanged. Used by the terminal transitions, which require
	// exactly one of content/error to remain set.
	ClearContent bool
	ClearError   bool
}

// ListFilter narrows and paginates List results.
type ListFilter struct {
	Status *models.FileStatus
	Offset int
	Limit  int
}

// Store is the record store consumed by the ingestion service, the
// worker pool and the query handlers. Updates are atomic per record;
// mutations of a single record are totally ordered.
type Store interface {
	Create(ctx context.Context, f *models.File) (*models.File, error)
	Get(ctx context.Context, id string) (*models.File, error)
	Update(ctx context.Context, id string, upd FileUpdate) (*models.File, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*models.File, int, error)
	Close() error
}

// validateUpdate enforces the lifecycle rules shared by every Store
// implementation: no mutation out of a terminal state, only legal
// status transitions, and monotonic progress while a file is live.
func validateUpdate(current *models.File, upd FileUpdate) error {
	next := current.Status
	if upd.Status != nil {
		next = *upd.Status
	}

	if next == current.Status {
		if current.Status.Terminal() {
			return ErrTerminalState
		}
	} else {
		if current.Status.Terminal() {
			return ErrTerminalState
		}
		if !current.Status.CanTransition(next) {
			return ErrInvalidTransition
		}
	}

	// Progress only moves forward until a terminal commit. The failed
	// commit resets to zero; the ready commit carries 100.
	if upd.Progress != nil && !next.Terminal() && *upd.Progress < current.Progress {
		return ErrProgressRegression
	}
	return nil
}

// applyUpdate mutates f in place according to upd. Callers hold
// whatever lock makes the mutation atomic.
func applyUpdate(f *models.File, upd FileUpdate) {
	if upd.Status != nil {
		f.Status = *upd.Status
	}
	if upd.Progress != nil {
		f.Progress = *upd.Progress
	}
	if upd.Content != nil {
		f.Content = upd.Content
	}
	if upd.ClearContent {
		f.Content = nil
	}
	if upd.Error != nil {
		f.Error = *upd.Error
	}
	if upd.ClearError {
		f.Error = ""
	}
}
