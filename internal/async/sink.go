package async

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

// SummaryFile is the combined batch output written next to the per-invoice files.
const SummaryFile = "all_results.json"

// Sink receives every finished result.
type Sink interface {
	Write(ctx context.Context, res pipeline.Result) error
}

// DirSink writes <stem>_result.json for each result into Dir.
type DirSink struct {
	Dir string
}

func (s DirSink) Write(_ context.Context, res pipeline.Result) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return writeJSON(filepath.Join(s.Dir, ResultFileName(res)), res)
}

// ResultFileName names the per-invoice output after the source document.
func ResultFileName(res pipeline.Result) string {
	name := res.DocumentInfo.Filename
	if name == "" {
		name = res.InvoiceID
	}
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return stem + "_result.json"
}

// WriteSummary writes the combined batch summary into dir.
func WriteSummary(dir string, summary pipeline.BatchSummary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, SummaryFile)
	return path, writeJSON(path, summary)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RepositorySink persists results through the results store.
type RepositorySink struct {
	Repo repository.ResultRepository
}

func (s RepositorySink) Write(ctx context.Context, res pipeline.Result) error {
	return s.Repo.SaveResult(ctx, res)
}

// MultiSink fans a result out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, res pipeline.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
