// Package ingest accepts uploaded files: it creates the File record,
// persists the raw bytes, and schedules the parse job.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/file-parser/backend/internal/models"
	"github.com/file-parser/backend/internal/queue"
	"github.com/file-parser/backend/internal/storage"
	"github.com/file-parser/backend/internal/store"
)

// Service is the producer side of the job queue contract. The enqueue
// always happens after the File record commit, so a worker never sees
// a job without a backing record under normal operation.
type Service struct {
	store store.Store
	blobs storage.BlobStore
	queue queue.Queue
	log   *slog.Logger
}

// NewService wires an ingestion service.
func NewService(st store.Store, blobs storage.BlobStore, q queue.Queue, log *slog.Logger) *Service {
	return &Service{
		store: st,
		blobs: blobs,
		queue: q,
		log:   log.With(slog.String("component", "ingest")),
	}
}

// Ingest creates the File record at status uploading, stores the raw
// bytes, and enqueues the parse job. Failures after the record exists
// settle the record as failed rather than leaving it dangling.
func (s *Service) Ingest(ctx context.Context, name string, size int64, r io.Reader) (*models.File, error) {
	typeTag := DetectType(name)

	rec, err := s.store.Create(ctx, &models.File{
		OriginalName: name,
		Size:         size,
		TypeTag:      typeTag,
		Status:       models.StatusUploading,
		Progress:     0,
	})
	if err != nil {
		return nil, fmt.Errorf("creating file record: %w", err)
	}

	locator, written, err := s.blobs.Save(ctx, rec.ID, r)
	if err != nil {
		s.settleFailed(ctx, rec.ID, fmt.Sprintf("failed to store uploaded file: %v", err))
		return nil, fmt.Errorf("storing uploaded bytes: %w", err)
	}
	if size <= 0 {
		rec.Size = written
	}

	job := models.ParseJob{FileID: rec.ID, Locator: locator, TypeTag: typeTag}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.settleFailed(ctx, rec.ID, fmt.Sprintf("failed to schedule parsing: %v", err))
		if rmErr := s.blobs.Remove(ctx, locator); rmErr != nil {
			s.log.Warn("failed to remove stored file", "file_id", rec.ID, "error", rmErr)
		}
		return nil, fmt.Errorf("enqueueing parse job: %w", err)
	}

	s.log.Info("file ingested", "file_id", rec.ID, "name", name, "type", typeTag, "size", rec.Size)
	return rec, nil
}

// Remove deletes a file record and any stored bytes. An in-flight job
// for the id finds the record missing and abandons itself.
func (s *Service) Remove(ctx context.Context, id string) (bool, error) {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}
	if err := s.blobs.Remove(ctx, id); err != nil {
		s.log.Warn("failed to remove stored file", "file_id", id, "error", err)
	}
	return true, nil
}

func (s *Service) settleFailed(ctx context.Context, id, cause string) {
	failed := models.StatusFailed
	zero := 0
	processing := models.StatusProcessing
	// The lifecycle has no uploading -> failed edge; pass through
	// processing so the record still ends terminal.
	if _, err := s.store.Update(ctx, id, store.FileUpdate{Status: &processing, Progress: &zero}); err != nil {
		s.log.Warn("failed to settle broken upload", "file_id", id, "error", err)
		return
	}
	if _, err := s.store.Update(ctx, id, store.FileUpdate{Status: &failed, Progress: &zero, Error: &cause}); err != nil {
		s.log.Warn("failed to settle broken upload", "file_id", id, "error", err)
	}
}

// DetectType maps a filename to its type tag, preferring the MIME
// type registered for the extension.
func DetectType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".txt", ".log":
		return "text/plain"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}
