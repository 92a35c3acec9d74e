package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/file-parser/backend/internal/models"
	"github.com/file-parser/backend/internal/queue"
	"github.com/file-parser/backend/internal/store"
	"github.com/file-parser/backend/internal/testutil"
)

func newTestService(t *testing.T) (*Service, store.Store, *testutil.MemBlobStore, *queue.MemoryQueue) {
	t.Helper()
	st := store.NewMemoryStore()
	blobs := testutil.NewMemBlobStore()
	q := queue.NewMemoryQueue(16)
	t.Cleanup(func() { q.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, blobs, q, log), st, blobs, q
}

func TestService_Ingest(t *testing.T) {
	ctx := context.Background()
	svc, st, blobs, q := newTestService(t)

	body := "a,b\n1,2\n"
	rec, err := svc.Ingest(ctx, "data.csv", int64(len(body)), strings.NewReader(body))
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, models.StatusUploading, rec.Status)
	require.Zero(t, rec.Progress)
	require.Equal(t, "text/csv", rec.TypeTag)
	require.Equal(t, int64(len(body)), rec.Size)

	// raw bytes persisted under the record id
	require.True(t, blobs.Has(rec.ID))

	// job enqueued after the record commit
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, rec.ID, d.Job.FileID)
	require.Equal(t, rec.ID, d.Job.Locator)
	require.Equal(t, "text/csv", d.Job.TypeTag)
	require.NoError(t, d.Ack())

	// the record is queryable immediately
	got, err := st.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusUploading, got.Status)
}

func TestService_IngestBlobFailureSettlesRecord(t *testing.T) {
	ctx := context.Background()
	svc, st, blobs, q := newTestService(t)
	blobs.FailSave = errors.New("disk full")

	_, err := svc.Ingest(ctx, "data.csv", 8, strings.NewReader("a,b\n1,2\n"))
	require.Error(t, err)

	// no job must reach the queue
	shortCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, dequeueErr := q.Dequeue(shortCtx)
	require.ErrorIs(t, dequeueErr, context.Canceled)

	// the record ends terminal instead of dangling at uploading
	files, total, err := st.List(ctx, store.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, models.StatusFailed, files[0].Status)
	require.Contains(t, files[0].Error, "failed to store uploaded file")
}

func TestService_IngestEnqueueFailureSettlesRecord(t *testing.T) {
	ctx := context.Background()
	svc, st, blobs, q := newTestService(t)
	require.NoError(t, q.Close())

	_, err := svc.Ingest(ctx, "data.csv", 8, strings.NewReader("a,b\n1,2\n"))
	require.ErrorIs(t, err, queue.ErrClosed)

	files, total, listErr := st.List(ctx, store.ListFilter{Limit: 10})
	require.NoError(t, listErr)
	require.Equal(t, 1, total)
	require.Equal(t, models.StatusFailed, files[0].Status)
	require.Contains(t, files[0].Error, "failed to schedule parsing")
	require.False(t, blobs.Has(files[0].ID), "stored bytes must not leak")
}

func TestService_Remove(t *testing.T) {
	ctx := context.Background()
	svc, st, blobs, _ := newTestService(t)

	rec, err := svc.Ingest(ctx, "data.csv", 8, strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)

	deleted, err := svc.Remove(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, blobs.Has(rec.ID))

	_, err = st.Get(ctx, rec.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	deleted, err = svc.Remove(ctx, rec.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestDetectType(t *testing.T) {
	cases := map[string]string{
		"report.csv":   "text/csv",
		"payload.JSON": "application/json",
		"conf.yaml":    "application/yaml",
		"conf.yml":     "application/yaml",
		"notes.txt":    "text/plain",
		"app.log":      "text/plain",
		"blob.bin":     "application/octet-stream",
		"noext":        "application/octet-stream",
	}
	for name, want := range cases {
		if got := DetectType(name); got != want {
			t.Errorf("DetectType(%q) = %q, want %q", name, got, want)
		}
	}
}
