package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one invoice document waiting to be reconciled.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor runs the reconciliation pipeline for a single document.
// *pipeline.Processor satisfies it.
type Processor interface {
	Process(ctx context.Context, path string) *entity.ProcessingState
}
