package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
)

type fakeResults struct {
	results []pipeline.Result
	err     error
}

func (f fakeResults) SaveResult(context.Context, pipeline.Result) error { return nil }
func (f fakeResults) ListResults(context.Context) ([]pipeline.Result, error) {
	return f.results, f.err
}

func sampleResults() []pipeline.Result {
	pct := 0.2
	return []pipeline.Result{
		{
			InvoiceID:           "INV-2024-001",
			RunID:               "run-1",
			ProcessingTimestamp: "2024-03-10T09:00:00Z",
			DocumentInfo:        pipeline.DocumentInfo{Filename: "Invoice_1_Baseline.pdf"},
			ProcessingResults: pipeline.ProcessingResults{
				ExtractionConfidence: 0.95,
				DocumentQuality:      constants.QualityExcellent,
				ExtractedData:        &entity.Invoice{SupplierName: "Acme Industrial Supplies Ltd"},
				MatchingResults:      &entity.MatchResult{PONumber: "PO-2024-001", Method: constants.MatchExactReference, Confidence: 1},
				Discrepancies:        []entity.Discrepancy{},
				RecommendedAction:    constants.ActionAutoApprove,
				RiskLevel:            constants.RiskLow,
				Confidence:           0.95,
				AgentReasoning:       "All checks passed.",
			},
		},
		{
			InvoiceID:           "INV-2024-004",
			RunID:               "run-4",
			ProcessingTimestamp: "2024-03-12T09:00:00Z",
			DocumentInfo:        pipeline.DocumentInfo{Filename: "Invoice_4_Price_Trap.pdf"},
			ProcessingResults: pipeline.ProcessingResults{
				ExtractionConfidence: 0.9,
				Discrepancies: []entity.Discrepancy{{
					Type: constants.DiscrepancyPriceMismatch, Severity: constants.SeverityHigh, Field: "unit_price",
					InvoiceValue: 6.0, POValue: 5.0, VariancePercentage: &pct,
					Details: "Unit price differs by 20%", Action: constants.ActionEscalate,
				}},
				RecommendedAction: constants.ActionEscalate,
				RiskLevel:         constants.RiskHigh,
				Confidence:        0.6,
			},
		},
	}
}

func TestResultsXLSX(t *testing.T) {
	b, err := NewService(nil, nil).ResultsXLSX(sampleResults())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{ResultsSheet, DiscrepanciesSheet}, f.GetSheetList())

	rows, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Invoice ID", rows[0][0])
	assert.Equal(t, "INV-2024-001", rows[1][0])
	assert.Equal(t, "Acme Industrial Supplies Ltd", rows[1][2])
	assert.Equal(t, "PO-2024-001", rows[1][3])
	assert.Equal(t, "auto_approve", rows[1][9])
	assert.Equal(t, "", rows[2][3])
	assert.Equal(t, "1", rows[2][8])

	drows, err := f.GetRows(DiscrepanciesSheet)
	require.NoError(t, err)
	require.Len(t, drows, 2)
	assert.Equal(t, []string{"INV-2024-004", "price_mismatch", "high", "unit_price", "6", "5", "0.2", "escalate_to_human", "Unit price differs by 20%"}, drows[1])
}

func TestExportResultsXLSXFilters(t *testing.T) {
	svc := NewService(fakeResults{results: sampleResults()}, nil)

	b, err := svc.ExportResultsXLSX(context.Background(), Filter{Action: constants.ActionEscalate})
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-2024-004"}, invoiceIDs(t, b))

	from := time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC)
	b, err = svc.ExportResultsXLSX(context.Background(), Filter{From: &from})
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-2024-004"}, invoiceIDs(t, b))

	to := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	b, err = svc.ExportResultsXLSX(context.Background(), Filter{To: &to})
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-2024-001"}, invoiceIDs(t, b))
}

func TestExportResultsXLSXErrors(t *testing.T) {
	_, err := NewService(fakeResults{err: errors.New("db down")}, nil).ExportResultsXLSX(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	_, err = NewService(nil, nil).ExportResultsXLSX(context.Background(), Filter{})
	require.Error(t, err)
}

func invoiceIDs(t *testing.T, b []byte) []string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	var ids []string
	for _, r := range rows[1:] {
		ids = append(ids, r[0])
	}
	return ids
}
