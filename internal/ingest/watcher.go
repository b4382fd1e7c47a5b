package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/internal/async"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid write/rename bursts
	SkipHidden  bool
}

// StartWatcher emits invoice paths created or rewritten under the roots.
// Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("ingest.watch.start_failed", "error", "no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.start_failed", "error", err)
		return nil, nil, err
	}

	wanted := func(path string) bool {
		if cfg.SkipHidden && IsHidden(path) {
			return false
		}
		return AllowedExt(filepath.Ext(path))
	}

	var initial []string
	for _, r := range cfg.Roots {
		err := filepath.WalkDir(r, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if cfg.SkipHidden && path != r && IsHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && wanted(path) {
				initial = append(initial, path)
			}
			return nil
		})
		if err != nil {
			logger.Error("ingest.watch.add_root_failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	logger.Info("ingest.watch.started", "roots", cfg.Roots, "initial", len(initial))

	go func() {
		var (
			mu      sync.Mutex
			timer   *time.Timer
			pending = map[string]struct{}{}
			wg      sync.WaitGroup
		)
		defer close(errCh)
		defer close(evCh)
		defer wg.Wait()
		defer func() {
			mu.Lock()
			if timer != nil && timer.Stop() {
				wg.Done()
			}
			mu.Unlock()
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_failed", "error", err)
			}
		}()

		emit := func(p string) {
			select {
			case evCh <- p:
			case <-ctx.Done():
			}
		}
		for _, p := range initial {
			emit(p)
		}

		flush := func() {
			defer wg.Done()
			mu.Lock()
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
				delete(pending, p)
			}
			timer = nil
			mu.Unlock()
			for _, p := range batch {
				emit(p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					// new sub-directories are watched too; files fail Add and are ignored
					_ = w.Add(e.Name)
				}
				if !wanted(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					continue
				}
				if cfg.Debounce <= 0 {
					emit(e.Name)
					continue
				}
				mu.Lock()
				pending[e.Name] = struct{}{}
				if timer == nil {
					wg.Add(1)
					timer = time.AfterFunc(cfg.Debounce, flush)
				} else if timer.Stop() {
					timer.Reset(cfg.Debounce)
				}
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// Feed enqueues every new document from events until the channel closes or
// ctx is done. Content already seen by dedup is skipped; a nil dedup admits everything.
func Feed(ctx context.Context, events <-chan string, q async.Queue, dedup *Deduper, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-events:
			if !ok {
				return
			}
			if dedup != nil {
				fresh, sum, err := dedup.Admit(p)
				if err != nil {
					logger.Warn("ingest.feed.unreadable", "file", p, "error", err)
					continue
				}
				if !fresh {
					logger.Info("ingest.feed.duplicate", "file", p, "sha256", sum)
					continue
				}
			}
			job := async.Job{Path: p, SubmittedAt: time.Now(), TraceID: uuid.NewString()}
			if err := q.Enqueue(ctx, job); err != nil {
				logger.Error("ingest.feed.enqueue_failed", "file", p, "error", err)
				if errors.Is(err, async.ErrQueueClosed) {
					return
				}
			}
		}
	}
}
