package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/geopoi/importer/internal/store"
)

// ErrQueueClosed is returned by Enqueue after Close has been called.
var ErrQueueClosed = errors.New("import queue is closed")

// Job is one queued file import.
type Job struct {
	ID       string
	BatchID  uuid.UUID
	FilePath string
	Options  Options
}

// Queue runs imports asynchronously on a fixed pool of workers. Each
// worker drives one file at a time through the pipeline; records within
// a file stay sequential.
type Queue struct {
	pipeline *Pipeline
	store    store.Store
	jobs     chan Job

	// mu guards closed. Enqueue holds the read side across the channel
	// send so Close can never close the channel mid-send; a full buffer
	// therefore only blocks other Close callers, not other Enqueues.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates a queue and starts its workers. ctx bounds the
// lifetime of queued runs; Close drains pending jobs.
func NewQueue(ctx context.Context, p *Pipeline, s store.Store, workers, depth int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if depth <= 0 {
		depth = 64
	}

	q := &Queue{
		pipeline: p,
		store:    s,
		jobs:     make(chan Job, depth),
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	return q
}

// Enqueue submits a file for asynchronous import and stores the job id
// on the batch record so consumers can correlate the two. Returns the
// job id.
func (q *Queue) Enqueue(ctx context.Context, batchID uuid.UUID, filePath string, opts Options) (string, error) {
	batch, err := q.store.GetBatch(ctx, batchID)
	if err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	batch.JobID = jobID
	if err := q.store.UpdateBatch(ctx, batch); err != nil {
		return "", fmt.Errorf("record job id: %w", err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	// Workers keep draining until the channel closes, so a full buffer
	// clears without any other Enqueue being blocked by this one.
	q.jobs <- Job{ID: jobID, BatchID: batchID, FilePath: filePath, Options: opts}
	return jobID, nil
}

// Close stops accepting jobs and blocks until queued jobs finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for job := range q.jobs {
		q.runJob(ctx, id, job)
	}
}

// runJob executes one job with panic recovery so a crashing import never
// takes a worker down with it.
func (q *Queue) runJob(ctx context.Context, workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in import job",
				"worker", workerID,
				"job_id", job.ID,
				"batch_id", job.BatchID,
				"panic", r,
			)
		}
	}()

	summary, err := q.pipeline.Run(ctx, job.BatchID, job.FilePath, job.Options)
	if err != nil {
		slog.Error("import job failed",
			"worker", workerID,
			"job_id", job.ID,
			"batch_id", job.BatchID,
			"error", err,
		)
		return
	}

	slog.Info("import job complete",
		"worker", workerID,
		"job_id", job.ID,
		"batch_id", job.BatchID,
		"status", summary.Status,
		"processed", summary.Processed,
		"failed", summary.Failed,
	)
}
