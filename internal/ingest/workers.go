package ingest

import (
	"context"
	"log/slog"
	"sync"
)

// Job is a unit of background ingestion work.
type Job struct {
	DocumentID string
	Run        func(ctx context.Context)
}

// Workers is a fixed-size pool draining a buffered job queue so uploads can
// return immediately while ingestion proceeds in the background.
type Workers struct {
	jobs   chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewWorkers starts count goroutines draining the queue. Jobs run with the
// given base context; shut the pool down with Close before discarding it.
func NewWorkers(ctx context.Context, count int, logger *slog.Logger) *Workers {
	if count < 1 {
		count = 1
	}
	w := &Workers{
		jobs:   make(chan Job, 128),
		logger: logger,
	}
	for i := 0; i < count; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
	return w
}

// Enqueue submits a job for background processing. It reports false once the
// pool is closed or if the queue is full.
func (w *Workers) Enqueue(job Job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	select {
	case w.jobs <- job:
		return true
	default:
		w.logger.Warn("ingestion queue full, rejecting job", "file_id", job.DocumentID)
		return false
	}
}

// Close stops accepting jobs and waits for in-flight work to finish.
func (w *Workers) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Workers) run(ctx context.Context, id int) {
	defer w.wg.Done()
	for job := range w.jobs {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping, dropping job", "worker", id, "file_id", job.DocumentID)
			continue
		default:
		}
		w.logger.Debug("worker picked up job", "worker", id, "file_id", job.DocumentID)
		job.Run(ctx)
	}
}
