package async

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
)

type BatchOptions struct {
	Workers        int
	InvoiceTimeout time.Duration
	// Sink, when set, receives each result as soon as it is ready.
	Sink Sink
}

// RunBatch reconciles paths with at most Workers in flight. Missing files are
// logged and skipped. One invoice failing never stops the others; results
// keep the order of paths.
func RunBatch(ctx context.Context, proc Processor, paths []string, opts BatchOptions, logger *slog.Logger) pipeline.BatchSummary {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.InvoiceTimeout <= 0 {
		opts.InvoiceTimeout = 3 * time.Minute
	}

	var (
		present []string
		skipped []string
	)
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			logger.Warn("batch.file.skipped", "file", p, "error", err)
			skipped = append(skipped, p)
			continue
		}
		present = append(present, p)
	}

	start := time.Now()
	results := make([]pipeline.Result, len(present))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, p := range present {
		g.Go(func() error {
			invCtx, cancel := context.WithTimeout(gCtx, opts.InvoiceTimeout)
			defer cancel()

			res := pipeline.Format(proc.Process(invCtx, p))
			results[i] = res
			if opts.Sink != nil {
				if err := opts.Sink.Write(invCtx, res); err != nil {
					logger.Error("batch.sink.failed", "file", p, "run_id", res.RunID, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := pipeline.Summarize(results, skipped)
	logger.Info("batch.done",
		"processed", summary.Processed,
		"failed", summary.Failed,
		"skipped", len(skipped),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return summary
}
