package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
)

const (
	ResultsSheet       = "Results"
	DiscrepanciesSheet = "Discrepancies"
)

// Filter narrows an export. Zero values mean no restriction; From and To are
// inclusive dates compared against the processing timestamp.
type Filter struct {
	Action constants.Action
	From   *time.Time
	To     *time.Time
}

// Service produces XLSX bytes from reconciliation results.
type Service struct {
	results repository.ResultRepository
	logger  *slog.Logger
}

func NewService(results repository.ResultRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{results: results, logger: logger}
}

// ExportResultsXLSX reads persisted results and renders the ones passing f.
func (s *Service) ExportResultsXLSX(ctx context.Context, f Filter) ([]byte, error) {
	if s.results == nil {
		return nil, fmt.Errorf("export: no results store configured")
	}
	all, err := s.results.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	kept := all[:0:0]
	for _, r := range all {
		if f.keep(r) {
			kept = append(kept, r)
		}
	}
	return s.ResultsXLSX(kept)
}

// ResultsXLSX renders one row per result plus one row per discrepancy.
func (s *Service) ResultsXLSX(results []pipeline.Result) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(DiscrepanciesSheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(ResultsSheet)
	f.SetActiveSheet(idx)

	writeRow(f, ResultsSheet, 1, []any{
		"Invoice ID", "Filename", "Supplier", "Matched PO", "Match Method", "Match Confidence",
		"Extraction Confidence", "Document Quality", "Discrepancies", "Action", "Risk",
		"Confidence", "Processed At", "Reasoning",
	})
	writeRow(f, DiscrepanciesSheet, 1, []any{
		"Invoice ID", "Type", "Severity", "Field", "Invoice Value", "PO Value", "Variance %", "Action", "Details",
	})

	row, drow := 2, 2
	for _, r := range results {
		pr := r.ProcessingResults
		var poNumber, method string
		var matchConf float64
		if pr.MatchingResults != nil {
			poNumber = pr.MatchingResults.PONumber
			method = string(pr.MatchingResults.Method)
			matchConf = pr.MatchingResults.Confidence
		}
		supplier := ""
		if pr.ExtractedData != nil {
			supplier = pr.ExtractedData.SupplierName
		}
		writeRow(f, ResultsSheet, row, []any{
			r.InvoiceID, r.DocumentInfo.Filename, supplier, poNumber, method, matchConf,
			pr.ExtractionConfidence, pr.DocumentQuality, len(pr.Discrepancies), string(pr.RecommendedAction),
			string(pr.RiskLevel), pr.Confidence, r.ProcessingTimestamp, truncate(pr.AgentReasoning, 500),
		})
		row++

		for _, d := range pr.Discrepancies {
			var pct any
			if d.VariancePercentage != nil {
				pct = *d.VariancePercentage
			}
			writeRow(f, DiscrepanciesSheet, drow, []any{
				r.InvoiceID, string(d.Type), d.Severity.String(), d.Field,
				cellValue(d.InvoiceValue), cellValue(d.POValue), pct, string(d.Action), truncate(d.Details, 240),
			})
			drow++
		}
	}

	_ = f.SetColWidth(ResultsSheet, "A", "B", 28)
	_ = f.SetColWidth(ResultsSheet, "C", "C", 34)
	_ = f.SetColWidth(ResultsSheet, "D", "L", 16)
	_ = f.SetColWidth(ResultsSheet, "M", "M", 26)
	_ = f.SetColWidth(ResultsSheet, "N", "N", 80)
	_ = f.SetColWidth(DiscrepanciesSheet, "A", "H", 18)
	_ = f.SetColWidth(DiscrepanciesSheet, "I", "I", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"discrepancy_rows", drow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (f Filter) keep(r pipeline.Result) bool {
	if f.Action != "" && r.ProcessingResults.RecommendedAction != f.Action {
		return false
	}
	if f.From == nil && f.To == nil {
		return true
	}
	ts, err := time.Parse(time.RFC3339Nano, r.ProcessingTimestamp)
	if err != nil {
		return false
	}
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	if f.From != nil && day.Before(dateOnly(*f.From)) {
		return false
	}
	if f.To != nil && day.After(dateOnly(*f.To)) {
		return false
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// cellValue keeps numbers numeric and stringifies everything else.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case float64, float32, int, int64, string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
