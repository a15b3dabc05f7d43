package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

// SubmissionRunner runs a submission to a terminal task state.
type SubmissionRunner interface {
	Run(ctx context.Context, sub pipeline.Submission) constants.TaskStatus
}

// ReprocessRunner re-runs extraction for a stored document.
type ReprocessRunner interface {
	Reprocess(ctx context.Context, req pipeline.ReprocessRequest) error
}

// ProcessorQueue is a fixed worker pool over a bounded channel.
type ProcessorQueue struct {
	proc      SubmissionRunner
	reprocess ReprocessRunner
	logger    *slog.Logger
	workers   int
	timeout   time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithProcessTimeout bounds each job. Zero, the default, leaves jobs unbounded
// and deadlines to each adapter's own client.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc SubmissionRunner, reprocess ReprocessRunner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:      proc,
		reprocess: reprocess,
		logger:    logger,
		workers:   4,
		ch:        make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.handle(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) handle(workerID int, job Job) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("worker recovered panic", "worker_id", workerID, "kind", job.Kind,
				"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	waited := time.Since(job.SubmittedAt).Milliseconds()
	switch job.Kind {
	case JobProcess:
		status := q.proc.Run(ctx, job.Submission)
		q.logger.Info("processed submission", "worker_id", workerID, "task_id", job.Submission.TaskID,
			"status", status, "queued_ms", waited, "trace_id", job.TraceID)
	case JobReprocess:
		if q.reprocess == nil {
			q.logger.Error("reprocess job without runner", "worker_id", workerID, "document_id", job.Reprocess.DocumentID)
			return
		}
		if err := q.reprocess.Reprocess(ctx, job.Reprocess); err != nil {
			q.logger.Error("reprocessing failed", "worker_id", workerID, "document_id", job.Reprocess.DocumentID, "error", err)
			return
		}
		q.logger.Info("reprocessed document", "worker_id", workerID, "document_id", job.Reprocess.DocumentID, "queued_ms", waited)
	default:
		q.logger.Error("unknown job kind", "worker_id", workerID, "kind", job.Kind)
	}
}

// Enqueue blocks while the queue is full until space frees up or ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "kind", job.Kind)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued job", "kind", job.Kind, "task_id", job.Submission.TaskID, "document_id", documentID(job))
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "kind", job.Kind, "depth", len(q.ch))
	select {
	case q.ch <- job:
		q.logger.Info("queued job", "kind", job.Kind, "task_id", job.Submission.TaskID, "document_id", documentID(job))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue: %w", ctx.Err())
	}
}

// Depth is the number of jobs waiting for a worker.
func (q *ProcessorQueue) Depth() int { return len(q.ch) }

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

func documentID(job Job) string {
	if job.Kind == JobReprocess {
		return job.Reprocess.DocumentID
	}
	return job.Submission.DocumentID
}
