// Package queue carries parse jobs from the ingestion service to the
// worker pool with at-least-once delivery.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/file-parser/backend/internal/models"
)

// ErrClosed is returned by queue operations after Close.
var ErrClosed = errors.New("queue is closed")

// Failure records a job that reached a terminal failure, for operator
// visibility. Failures are never retried automatically.
type Failure struct {
	Job    models.ParseJob `json:"job"`
	Reason string          `json:"reason"`
	At     time.Time       `json:"at"`
}

// Delivery is a dequeued job. The consumer must settle it exactly
// once: Ack on completion (success or terminal failure), Nack to have
// the job redelivered.
type Delivery struct {
	Job models.ParseJob

	ack  func() error
	nack func() error
}

// Ack marks the job as handled.
func (d *Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack returns the job to the queue for redelivery.
func (d *Delivery) Nack() error {
	if d.nack == nil {
		return nil
	}
	return d.nack()
}

// Queue is the job channel between producer and worker pool. It is an
// injected dependency; no package-level instance exists.
type Queue interface {
	// Enqueue publishes a job. The producer calls this only after the
	// File record is durably created.
	Enqueue(ctx context.Context, job models.ParseJob) error
	// Dequeue blocks until a job is available, the context is
	// cancelled, or the queue is closed.
	Dequeue(ctx context.Context) (*Delivery, error)
	// ReportFailure records a terminal job failure on the failure
	// channel.
	ReportFailure(ctx context.Context, job models.ParseJob, cause error) error
	Close() error
}
