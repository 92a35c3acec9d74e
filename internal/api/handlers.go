package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/file-parser/backend/internal/cache"
	"github.com/file-parser/backend/internal/ingest"
	"github.com/file-parser/backend/internal/models"
	"github.com/file-parser/backend/internal/storage"
	"github.com/file-parser/backend/internal/store"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Handler handles API requests.
type Handler struct {
	store        store.Store
	blobs        storage.BlobStore
	ingest       *ingest.Service
	cache        cache.ProgressCache
	log          *slog.Logger
	allowedTypes map[string]struct{}
}

// NewHandler creates a new API handler. allowedExtensions restricts
// uploads by extension; empty means everything is accepted.
func NewHandler(st store.Store, blobs storage.BlobStore, ing *ingest.Service, pc cache.ProgressCache, log *slog.Logger, allowedExtensions []string) *Handler {
	var allowed map[string]struct{}
	if len(allowedExtensions) > 0 {
		allowed = make(map[string]struct{}, len(allowedExtensions))
		for _, ext := range allowedExtensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext != "" {
				allowed[ext] = struct{}{}
			}
		}
	}
	if pc == nil {
		pc = cache.Noop{}
	}
	return &Handler{
		store:        st,
		blobs:        blobs,
		ingest:       ing,
		cache:        pc,
		log:          log.With(slog.String("component", "api")),
		allowedTypes: allowed,
	}
}

// HandleIndex describes the service.
func (h *Handler) HandleIndex(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "File Parser API",
		"health":  "/health",
	})
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HandleUploadFile accepts a multipart upload, creates the file
// record and schedules parsing.
func (h *Handler) HandleUploadFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}
	if fh.Filename == "" {
		return NewValidationError("file")
	}
	if !h.extensionAllowed(fh.Filename) {
		return NewBadRequestError("file type not allowed: "+filepath.Ext(fh.Filename), nil)
	}

	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to read uploaded file", err)
	}
	defer src.Close()

	rec, err := h.ingest.Ingest(c.Request().Context(), fh.Filename, fh.Size, src)
	if err != nil {
		return NewInternalError("failed to ingest file", err)
	}

	return c.JSON(http.StatusCreated, rec)
}

// HandleListFiles returns a paginated listing with optional status
// filtering.
func (h *Handler) HandleListFiles(c echo.Context) error {
	skip := 0
	if v := c.QueryParam("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return NewValidationError("skip")
		}
		skip = n
	}

	limit := defaultListLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return NewValidationError("limit")
		}
		limit = n
	}

	filter := store.ListFilter{Offset: skip, Limit: limit}
	if v := c.QueryParam("status"); v != "" {
		status := models.FileStatus(v)
		if !status.Valid() {
			return NewValidationError("status")
		}
		filter.Status = &status
	}

	files, total, err := h.store.List(c.Request().Context(), filter)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	return c.JSON(http.StatusOK, &models.FileList{Files: files, Total: total})
}

// HandleGetProgress returns the progress projection, served from the
// read cache when a snapshot exists.
func (h *Handler) HandleGetProgress(c echo.Context) error {
	id := c.Param("id")

	if snap, err := h.cache.Get(c.Request().Context(), id); err == nil && snap != nil {
		return c.JSON(http.StatusOK, snap)
	}

	rec, err := h.store.Get(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return NewNotFoundError("file", id)
	}
	if err != nil {
		return NewInternalError("failed to load file", err)
	}

	return c.JSON(http.StatusOK, rec.ProgressView())
}

// HandleGetContent returns the parsed content once processing is
// complete.
func (h *Handler) HandleGetContent(c echo.Context) error {
	rec, err := h.loadReadyFile(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec.ContentView())
}

// HandleGetContentMsgpack returns the content projection msgpack
// encoded, for clients polling large parsed payloads.
func (h *Handler) HandleGetContentMsgpack(c echo.Context) error {
	rec, err := h.loadReadyFile(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(rec.ContentView())
	if err != nil {
		return NewInternalError("failed to encode content", err)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

// loadReadyFile fetches a record and rejects non-ready states the way
// the content contract requires: still-processing files signal "not
// ready", failed files surface their stored cause.
func (h *Handler) loadReadyFile(c echo.Context) (*models.File, error) {
	id := c.Param("id")

	rec, err := h.store.Get(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewNotFoundError("file", id)
	}
	if err != nil {
		return nil, NewInternalError("failed to load file", err)
	}

	switch rec.Status {
	case models.StatusProcessing:
		return nil, NewNotReadyError(id)
	case models.StatusFailed:
		return nil, NewParseFailedError(rec.Error)
	case models.StatusReady:
		return rec, nil
	default:
		return nil, NewBadRequestError("file is not ready", nil)
	}
}

// HandleDeleteFile removes the record and any stored bytes. A job
// still in flight for this id abandons itself on its next commit.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")

	deleted, err := h.ingest.Remove(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("failed to delete file", err)
	}
	if !deleted {
		return NewNotFoundError("file", id)
	}

	if err := h.cache.Delete(c.Request().Context(), id); err != nil {
		h.log.Warn("failed to drop cached progress", "file_id", id, "error", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "file deleted"})
}

// HandleDownloadFile streams the original uploaded bytes while they
// still exist; they are removed once processing settles.
func (h *Handler) HandleDownloadFile(c echo.Context) error {
	id := c.Param("id")

	rec, err := h.store.Get(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return NewNotFoundError("file", id)
	}
	if err != nil {
		return NewInternalError("failed to load file", err)
	}

	rc, err := h.blobs.Open(c.Request().Context(), id)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return NewNotFoundError("stored file", id)
	}
	if err != nil {
		return NewInternalError("failed to open stored file", err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+rec.OriginalName+`"`)
	c.Response().Header().Set(echo.HeaderContentType, rec.TypeTag)
	c.Response().WriteHeader(http.StatusOK)
	_, err = io.Copy(c.Response(), rc)
	return err
}

func (h *Handler) extensionAllowed(filename string) bool {
	if h.allowedTypes == nil {
		return true
	}
	_, ok := h.allowedTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}
