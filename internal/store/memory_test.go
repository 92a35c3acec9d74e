package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/file-parser/backend/internal/models"
)

func newFile(name string) *models.File {
	return &models.File{
		OriginalName: name,
		Size:         42,
		TypeTag:      "text/csv",
		Status:       models.StatusUploading,
	}
}

func statusPtr(s models.FileStatus) *models.FileStatus { return &s }
func intPtr(n int) *int                                { return &n }
func strPtr(s string) *string                          { return &s }

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec, err := s.Create(ctx, newFile("a.csv"))
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, models.StatusUploading, rec.Status)
	require.Zero(t, rec.Progress)
	require.False(t, rec.CreatedAt.IsZero())

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, "a.csv", got.OriginalName)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec, err := s.Create(ctx, newFile("a.csv"))
	require.NoError(t, err)

	// uploading -> processing resets progress
	got, err := s.Update(ctx, rec.ID, FileUpdate{
		Status:   statusPtr(models.StatusProcessing),
		Progress: intPtr(0),
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, got.Status)
	require.Zero(t, got.Progress)

	// incremental progress
	got, err = s.Update(ctx, rec.ID, FileUpdate{Progress: intPtr(40)})
	require.NoError(t, err)
	require.Equal(t, 40, got.Progress)

	// terminal success commits status, progress and content together
	got, err = s.Update(ctx, rec.ID, FileUpdate{
		Status:     statusPtr(models.StatusReady),
		Progress:   intPtr(100),
		Content:    map[string]any{"rows": 3},
		ClearError: true,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusReady, got.Status)
	require.Equal(t, 100, got.Progress)
	require.Equal(t, 3, got.Content["rows"])
	require.Empty(t, got.Error)
}

func TestMemoryStore_TerminalStatesAreImmutable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec, err := s.Create(ctx, newFile("a.csv"))
	require.NoError(t, err)

	_, err = s.Update(ctx, rec.ID, FileUpdate{Status: statusPtr(models.StatusProcessing), Progress: intPtr(0)})
	require.NoError(t, err)
	_, err = s.Update(ctx, rec.ID, FileUpdate{
		Status:       statusPtr(models.StatusFailed),
		Progress:     intPtr(0),
		Error:        strPtr("failed to parse CSV: boom"),
		ClearContent: true,
	})
	require.NoError(t, err)

	// no re-entry into processing
	_, err = s.Update(ctx, rec.ID, FileUpdate{Status: statusPtr(models.StatusProcessing), Progress: intPtr(0)})
	require.ErrorIs(t, err, ErrTerminalState)

	// no progress mutation either
	_, err = s.Update(ctx, rec.ID, FileUpdate{Progress: intPtr(50)})
	require.ErrorIs(t, err, ErrTerminalState)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, got.Status)
	require.Zero(t, got.Progress)
	require.Equal(t, "failed to parse CSV: boom", got.Error)
	require.Nil(t, got.Content)
}

func TestMemoryStore_InvalidTransition(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec, err := s.Create(ctx, newFile("a.csv"))
	require.NoError(t, err)

	// uploading cannot jump straight to ready
	_, err = s.Update(ctx, rec.ID, FileUpdate{Status: statusPtr(models.StatusReady), Progress: intPtr(100)})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemoryStore_ProgressNeverRegressesWhileLive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec, err := s.Create(ctx, newFile("a.csv"))
	require.NoError(t, err)
	_, err = s.Update(ctx, rec.ID, FileUpdate{Status: statusPtr(models.StatusProcessing), Progress: intPtr(0)})
	require.NoError(t, err)
	_, err = s.Update(ctx, rec.ID, FileUpdate{Progress: intPtr(40)})
	require.NoError(t, err)

	// a lower value is rejected, so a redelivered job cannot move a
	// poller's progress backwards
	_, err = s.Update(ctx, rec.ID, FileUpdate{Progress: intPtr(25)})
	require.ErrorIs(t, err, ErrProgressRegression)

	// so is a processing re-entry carrying a reset
	_, err = s.Update(ctx, rec.ID, FileUpdate{Status: statusPtr(models.StatusProcessing), Progress: intPtr(0)})
	require.ErrorIs(t, err, ErrProgressRegression)

	// repeating the current value is fine
	_, err = s.Update(ctx, rec.ID, FileUpdate{Progress: intPtr(40)})
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, 40, got.Progress)

	// the terminal failed commit is the one allowed reset
	_, err = s.Update(ctx, rec.ID, FileUpdate{
		Status:   statusPtr(models.StatusFailed),
		Progress: intPtr(0),
		Error:    strPtr("boom"),
	})
	require.NoError(t, err)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec, err := s.Create(ctx, newFile("a.csv"))
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = s.Get(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)

	deleted, err = s.Delete(ctx, rec.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var ids []string
	for i := 0; i < 5; i++ {
		rec, err := s.Create(ctx, newFile("f.csv"))
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	// move two records to processing
	for _, id := range ids[:2] {
		_, err := s.Update(ctx, id, FileUpdate{Status: statusPtr(models.StatusProcessing), Progress: intPtr(0)})
		require.NoError(t, err)
	}

	files, total, err := s.List(ctx, ListFilter{Limit: 100})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, files, 5)

	files, total, err = s.List(ctx, ListFilter{Status: statusPtr(models.StatusProcessing), Limit: 100})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, files, 2)

	// pagination reports the total before slicing
	files, total, err = s.List(ctx, ListFilter{Offset: 3, Limit: 100})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, files, 2)

	files, _, err = s.List(ctx, ListFilter{Offset: 99, Limit: 100})
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestMemoryStore_CloneIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec, err := s.Create(ctx, newFile("a.csv"))
	require.NoError(t, err)
	_, err = s.Update(ctx, rec.ID, FileUpdate{Status: statusPtr(models.StatusProcessing), Progress: intPtr(0)})
	require.NoError(t, err)
	_, err = s.Update(ctx, rec.ID, FileUpdate{
		Status:   statusPtr(models.StatusReady),
		Progress: intPtr(100),
		Content:  map[string]any{"rows": 1},
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	got.Content["rows"] = 999

	again, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, 1, again.Content["rows"])
}
