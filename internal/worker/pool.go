// Package worker consumes parse jobs and drives each file through its
// lifecycle: uploading -> processing -> ready | failed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/file-parser/backend/internal/cache"
	"github.com/file-parser/backend/internal/models"
	"github.com/file-parser/backend/internal/parser"
	"github.com/file-parser/backend/internal/queue"
	"github.com/file-parser/backend/internal/storage"
	"github.com/file-parser/backend/internal/store"
)

// Progress milestones emitted while a job moves through its phases.
// Values stay below 100: the terminal success commit owns 100, so a
// poller can never read "done" mid-parse.
const (
	progressLoaded   = 25
	progressResolved = 40
	progressParsed   = 75
	progressEncoding = 90
	progressCeiling  = 99
)

// defaultRequeueDelay paces the Nack path so a store outage does not
// turn redelivery into a busy loop.
const defaultRequeueDelay = time.Second

// Pool runs N workers against a shared job queue. Workers operate in
// parallel across file ids; per-job ownership comes from the queue's
// delivery guarantees, not from record locking.
type Pool struct {
	store   store.Store
	blobs   storage.BlobStore
	queue   queue.Queue
	parsers *parser.Registry
	cache   cache.ProgressCache
	log     *slog.Logger
	workers int

	requeueDelay time.Duration

	wg sync.WaitGroup
}

// NewPool wires a worker pool. All collaborators are injected.
func NewPool(st store.Store, blobs storage.BlobStore, q queue.Queue, reg *parser.Registry, pc cache.ProgressCache, log *slog.Logger, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if pc == nil {
		pc = cache.Noop{}
	}
	return &Pool{
		store:        st,
		blobs:        blobs,
		queue:        q,
		parsers:      reg,
		cache:        pc,
		log:          log.With(slog.String("component", "worker")),
		workers:      workers,
		requeueDelay: defaultRequeueDelay,
	}
}

// Start launches the workers. They run until ctx is cancelled or the
// queue is closed.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.loop(ctx, id)
		}(i)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	log := p.log.With(slog.Int("worker", id))
	for {
		delivery, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrClosed) {
				return
			}
			log.Warn("dequeue failed", "error", err)
			continue
		}
		p.handle(ctx, log, delivery)
	}
}

// handle settles the delivery: Ack when the job reached a terminal
// outcome or was abandoned, Nack when a store commit failed so the
// broker redelivers it.
func (p *Pool) handle(ctx context.Context, log *slog.Logger, delivery *queue.Delivery) {
	if err := p.process(ctx, log, delivery.Job); err != nil {
		log.Warn("job commit failed, requeueing", "file_id", delivery.Job.FileID, "error", err)
		if nackErr := delivery.Nack(); nackErr != nil {
			log.Error("nack failed", "file_id", delivery.Job.FileID, "error", nackErr)
		}
		// Pace redelivery so a persistent store failure does not spin
		// the pool.
		select {
		case <-time.After(p.requeueDelay):
		case <-ctx.Done():
		}
		return
	}
	if err := delivery.Ack(); err != nil {
		log.Warn("ack failed", "file_id", delivery.Job.FileID, "error", err)
	}
}

// process runs one job to a settled outcome. A non-nil return means
// only "the record store would not commit": every other failure is
// captured into the file's terminal failed state. The worker itself
// survives any job.
func (p *Pool) process(ctx context.Context, log *slog.Logger, job models.ParseJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic recovered in job", "file_id", job.FileID, "panic", r)
			err = p.markFailed(ctx, log, job, fmt.Sprintf("unhandled worker error: %v", r))
		}
	}()

	rec, getErr := p.store.Get(ctx, job.FileID)
	if errors.Is(getErr, store.ErrNotFound) {
		// Deleted before or during delivery; abandon, not a failure
		// of any file.
		log.Warn("abandoning job, file record missing", "file_id", job.FileID)
		p.cleanup(ctx, log, job)
		return nil
	}
	if getErr != nil {
		p.reportFailure(ctx, log, job, getErr)
		return fmt.Errorf("loading file record: %w", getErr)
	}

	// Duplicate delivery against a settled file is a no-op.
	if rec.Status.Terminal() {
		log.Info("duplicate delivery for terminal file, ignoring", "file_id", job.FileID, "status", rec.Status)
		p.cleanup(ctx, log, job)
		return nil
	}

	abandoned, err := p.beginProcessing(ctx, log, job, rec)
	if abandoned || err != nil {
		return err
	}
	if ctx.Err() != nil {
		// Shutting down mid-job: leave it unsettled so redelivery
		// picks it up.
		return ctx.Err()
	}

	// Seeding from the record keeps progress monotonic across a
	// redelivery that found the record mid-processing.
	tracker := &progressTracker{pool: p, job: job, last: rec.Progress}

	data, readErr := p.readBlob(ctx, job.Locator)
	if readErr != nil {
		return p.markFailed(ctx, log, job, fmt.Sprintf("failed to read stored file: %v", readErr))
	}
	if abandoned, err := tracker.advance(ctx, log, progressLoaded); abandoned || err != nil {
		return err
	}

	psr, resolveErr := p.parsers.Resolve(job.TypeTag, rec.OriginalName)
	if resolveErr != nil {
		return p.markFailed(ctx, log, job, resolveErr.Error())
	}
	if abandoned, err := tracker.advance(ctx, log, progressResolved); abandoned || err != nil {
		return err
	}

	content, parseErr := psr.Parse(data)
	if parseErr != nil {
		return p.markFailed(ctx, log, job, parseErr.Error())
	}
	if abandoned, err := tracker.advance(ctx, log, progressParsed); abandoned || err != nil {
		return err
	}
	if abandoned, err := tracker.advance(ctx, log, progressEncoding); abandoned || err != nil {
		return err
	}

	ready := models.StatusReady
	full := 100
	updated, commitErr := p.store.Update(ctx, job.FileID, store.FileUpdate{
		Status:     &ready,
		Progress:   &full,
		Content:    content,
		ClearError: true,
	})
	if errors.Is(commitErr, store.ErrNotFound) {
		log.Warn("abandoning job, file deleted during parse", "file_id", job.FileID)
		p.cleanup(ctx, log, job)
		return nil
	}
	if errors.Is(commitErr, store.ErrTerminalState) {
		p.cleanup(ctx, log, job)
		return nil
	}
	if commitErr != nil {
		p.reportFailure(ctx, log, job, commitErr)
		return fmt.Errorf("committing parsed content: %w", commitErr)
	}

	p.snapshot(ctx, log, updated)
	p.cleanup(ctx, log, job)
	log.Info("file parsed", "file_id", job.FileID, "parser", psr.Name(), "size", len(data))
	return nil
}

// beginProcessing commits uploading -> processing with progress 0. A
// record already processing (redelivery after a worker died mid-job)
// skips the commit: resetting it would move a poller's progress
// backwards.
func (p *Pool) beginProcessing(ctx context.Context, log *slog.Logger, job models.ParseJob, rec *models.File) (abandoned bool, err error) {
	if rec.Status == models.StatusProcessing {
		return false, nil
	}

	processing := models.StatusProcessing
	zero := 0
	updated, updErr := p.store.Update(ctx, rec.ID, store.FileUpdate{
		Status:   &processing,
		Progress: &zero,
	})
	if errors.Is(updErr, store.ErrNotFound) || errors.Is(updErr, store.ErrTerminalState) {
		// Settled or deleted between the status check and this
		// commit; nothing left to do here.
		p.cleanup(ctx, log, job)
		return true, nil
	}
	if updErr != nil {
		p.reportFailure(ctx, log, job, updErr)
		return false, fmt.Errorf("committing processing transition: %w", updErr)
	}
	p.snapshot(ctx, log, updated)
	return false, nil
}

// reportFailure pushes a failure record to the queue's failure
// channel for operator visibility, best effort.
func (p *Pool) reportFailure(ctx context.Context, log *slog.Logger, job models.ParseJob, cause error) {
	if err := p.queue.ReportFailure(ctx, job, cause); err != nil {
		log.Warn("failed to report job failure", "file_id", job.FileID, "error", err)
	}
}

// markFailed commits the terminal failed state and reports the cause
// on the queue's failure channel. Returns non-nil only when the store
// itself would not commit, which asks for redelivery.
func (p *Pool) markFailed(ctx context.Context, log *slog.Logger, job models.ParseJob, cause string) error {
	failed := models.StatusFailed
	zero := 0
	msg := cause
	updated, err := p.store.Update(ctx, job.FileID, store.FileUpdate{
		Status:       &failed,
		Progress:     &zero,
		Error:        &msg,
		ClearContent: true,
	})
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("abandoning failed job, file record missing", "file_id", job.FileID, "cause", cause)
		p.cleanup(ctx, log, job)
		return nil
	}
	if errors.Is(err, store.ErrTerminalState) {
		p.cleanup(ctx, log, job)
		return nil
	}
	if err != nil {
		p.reportFailure(ctx, log, job, err)
		return fmt.Errorf("committing failed state: %w", err)
	}

	p.snapshot(ctx, log, updated)
	p.reportFailure(ctx, log, job, errors.New(cause))
	p.cleanup(ctx, log, job)
	log.Info("file failed", "file_id", job.FileID, "cause", cause)
	return nil
}

func (p *Pool) readBlob(ctx context.Context, locator string) ([]byte, error) {
	rc, err := p.blobs.Open(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// cleanup removes the temporary stored bytes. Runs on every settled
// path; only a pending redelivery keeps the artifact alive.
func (p *Pool) cleanup(ctx context.Context, log *slog.Logger, job models.ParseJob) {
	if err := p.blobs.Remove(ctx, job.Locator); err != nil {
		log.Warn("failed to remove stored file", "file_id", job.FileID, "locator", job.Locator, "error", err)
	}
	if err := p.cache.Delete(ctx, job.FileID); err != nil {
		log.Warn("failed to drop cached progress", "file_id", job.FileID, "error", err)
	}
	if rec, err := p.store.Get(ctx, job.FileID); err == nil {
		p.snapshot(ctx, log, rec)
	}
}

// snapshot mirrors the record's progress view into the read cache.
func (p *Pool) snapshot(ctx context.Context, log *slog.Logger, rec *models.File) {
	if err := p.cache.Set(ctx, rec.ProgressView()); err != nil {
		log.Warn("failed to cache progress", "file_id", rec.ID, "error", err)
	}
}

// progressTracker commits monotonically increasing progress values,
// clamped below the terminal band.
type progressTracker struct {
	pool *Pool
	job  models.ParseJob
	last int
}

// advance commits value when it moves progress strictly forward.
// abandoned is true when the record disappeared or settled under us,
// which ends the job without error.
func (t *progressTracker) advance(ctx context.Context, log *slog.Logger, value int) (abandoned bool, err error) {
	if value > progressCeiling {
		value = progressCeiling
	}
	if value <= t.last {
		return false, nil
	}

	updated, updErr := t.pool.store.Update(ctx, t.job.FileID, store.FileUpdate{Progress: &value})
	if errors.Is(updErr, store.ErrNotFound) {
		log.Warn("abandoning job, file deleted during processing", "file_id", t.job.FileID)
		t.pool.cleanup(ctx, log, t.job)
		return true, nil
	}
	if errors.Is(updErr, store.ErrTerminalState) {
		t.pool.cleanup(ctx, log, t.job)
		return true, nil
	}
	if updErr != nil {
		// Progress is advisory; a flaky commit should not fail the
		// job.
		log.Warn("progress update failed", "file_id", t.job.FileID, "error", updErr)
		return false, nil
	}

	t.last = value
	t.pool.snapshot(ctx, log, updated)
	return false, nil
}
