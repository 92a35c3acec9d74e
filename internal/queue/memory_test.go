package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/file-parser/backend/internal/models"
)

func TestMemoryQueue_EnqueueDequeueOrder(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(8)
	defer q.Close()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, models.ParseJob{FileID: id}))
	}

	for _, want := range []string{"a", "b", "c"} {
		d, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.Equal(t, want, d.Job.FileID)
		require.NoError(t, d.Ack())
	}
}

func TestMemoryQueue_NackRedelivers(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(8)
	defer q.Close()

	job := models.ParseJob{FileID: "f1", Locator: "f1", TypeTag: "text/csv"}
	require.NoError(t, q.Enqueue(ctx, job))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Nack())

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, job, d.Job)
	require.NoError(t, d.Ack())
}

func TestMemoryQueue_DequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_CloseUnblocksDequeue(t *testing.T) {
	q := NewMemoryQueue(1)

	errc := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock after close")
	}

	require.ErrorIs(t, q.Enqueue(context.Background(), models.ParseJob{FileID: "x"}), ErrClosed)
}

func TestMemoryQueue_CloseUnblocksEnqueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(1)

	// fill the buffer so the next enqueue blocks
	require.NoError(t, q.Enqueue(ctx, models.ParseJob{FileID: "a"}))

	errc := make(chan error, 1)
	go func() {
		errc <- q.Enqueue(ctx, models.ParseJob{FileID: "b"})
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not unblock after close")
	}
}

func TestMemoryQueue_ReportFailure(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)
	defer q.Close()

	job := models.ParseJob{FileID: "f1", TypeTag: "application/zip"}
	require.NoError(t, q.ReportFailure(ctx, job, errors.New("unsupported type: application/zip")))

	select {
	case f := <-q.Failures():
		require.Equal(t, "f1", f.Job.FileID)
		require.Equal(t, "unsupported type: application/zip", f.Reason)
		require.False(t, f.At.IsZero())
	default:
		t.Fatal("expected a failure report")
	}
}

func TestMemoryQueue_ReportFailureNeverBlocks(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(1)
	defer q.Close()

	cause := errors.New("boom")
	// second report overflows the buffer and must be dropped, not block
	require.NoError(t, q.ReportFailure(ctx, models.ParseJob{FileID: "a"}, cause))
	require.NoError(t, q.ReportFailure(ctx, models.ParseJob{FileID: "b"}, cause))

	f := <-q.Failures()
	require.Equal(t, "a", f.Job.FileID)
}
