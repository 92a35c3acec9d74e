package queue

import (
	"context"
	"sync"
	"time"

	"github.com/file-parser/backend/internal/models"
)

// DefaultBufferSize is the job buffer of an in-memory queue.
const DefaultBufferSize = 1000

// MemoryQueue is a channel-backed Queue for single-process
// deployments and tests. Nack pushes the job back for redelivery;
// failures land on a buffered channel the operator can drain.
type MemoryQueue struct {
	jobs     chan models.ParseJob
	failures chan Failure

	// done signals shutdown. The jobs channel is never closed, since
	// a producer blocked in Enqueue could otherwise send on a closed
	// channel; both ends select on done instead.
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates a MemoryQueue with the given job buffer.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &MemoryQueue{
		jobs:     make(chan models.ParseJob, buffer),
		failures: make(chan Failure, buffer),
		done:     make(chan struct{}),
	}
}

var _ Queue = (*MemoryQueue)(nil)

// Enqueue publishes a job, blocking if the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, job models.ParseJob) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a job arrives, the queue closes, or ctx is
// cancelled.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case job := <-q.jobs:
		return &Delivery{
			Job: job,
			nack: func() error {
				return q.Enqueue(context.Background(), job)
			},
		}, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReportFailure records a failure. The report is dropped if nobody is
// draining the channel and it fills up; losing a report must never
// block a worker.
func (q *MemoryQueue) ReportFailure(_ context.Context, job models.ParseJob, cause error) error {
	f := Failure{Job: job, Reason: cause.Error(), At: time.Now().UTC()}
	select {
	case q.failures <- f:
	default:
	}
	return nil
}

// Failures exposes the failure channel.
func (q *MemoryQueue) Failures() <-chan Failure {
	return q.failures
}

// Close stops the queue. Blocked Enqueue and Dequeue calls return
// ErrClosed.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	return nil
}
