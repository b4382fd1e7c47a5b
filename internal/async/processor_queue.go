package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
)

type ProcessorQueue struct {
	proc    Processor
	sink    Sink
	logger  *slog.Logger
	workers int
	timeout time.Duration

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
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewProcessorQueue starts the workers immediately. Every finished run is
// formatted and handed to sink; a nil sink discards results.
func NewProcessorQueue(proc Processor, sink Sink, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = MultiSink{}
	}
	q := &ProcessorQueue{
		proc:    proc,
		sink:    sink,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
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
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.handle(workerID, job)
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) handle(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	res := pipeline.Format(q.proc.Process(ctx, job.Path))
	if err := q.sink.Write(ctx, res); err != nil {
		q.logger.Error("queue.sink.failed", "worker_id", workerID, "file", job.Path, "run_id", res.RunID, "error", err)
		return
	}
	q.logger.Info("queue.job.done",
		"worker_id", workerID,
		"file", job.Path,
		"invoice_id", res.InvoiceID,
		"action", res.ProcessingResults.RecommendedAction,
		"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
	)
}

// Enqueue blocks while the buffer is full.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "file", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueue.ok", "file", job.Path, "trace_id", job.TraceID)
		return nil
	default:
	}
	q.logger.Warn("queue.enqueue.backpressure", "file", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

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
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
