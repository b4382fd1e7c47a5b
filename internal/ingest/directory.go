package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

type DiscoverOptions struct {
	SkipHidden bool
	// Exclude lists files that live alongside invoices but are not invoices,
	// such as the PO database.
	Exclude []string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// Discover walks root and returns every invoice document under it, sorted by path.
// Unreadable entries are logged and counted, not fatal.
func Discover(root string, opts DiscoverOptions, logger *slog.Logger) ([]string, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: root path is required", common.ErrInvalidInput)
	}

	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, p := range opts.Exclude {
		if abs, err := filepath.Abs(p); err == nil {
			exclude[abs] = struct{}{}
		}
	}

	var (
		paths []string
		stats DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn("ingest.discover.unreadable", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil {
			if _, skip := exclude[abs]; skip {
				return nil
			}
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, stats, fmt.Errorf("%w: directory %s", common.ErrNotFound, root)
		}
		return nil, stats, fmt.Errorf("walk: %w", err)
	}

	sort.Strings(paths)
	logger.Info("ingest.discover.ok", "root", root, "scanned", stats.Scanned, "matched", stats.Matched)
	return paths, stats, nil
}
