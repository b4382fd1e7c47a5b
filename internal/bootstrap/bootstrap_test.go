package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
)

func testConfig() *common.Config {
	return &common.Config{
		Narration:  common.NarrationConfig{Provider: "template"},
		Thresholds: common.DefaultThresholds(),
	}
}

func orders() []entity.PurchaseOrder {
	return []entity.PurchaseOrder{{
		PONumber: "PO-2024-003", Supplier: "Precision Tools Ltd", Date: "2024-02-25", Total: 270, Currency: "GBP",
		LineItems: []entity.LineItem{{Description: "Drill bit set", Quantity: 9, Unit: "units", UnitPrice: 30, LineTotal: 270}},
	}}
}

func writeInvoice(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "invoice.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestProcessorEndToEndStructuredInvoice(t *testing.T) {
	proc, err := Processor(testConfig(), orders(), slog.Default())
	require.NoError(t, err)

	path := writeInvoice(t, `{
	  "invoice_number": "INV-2024-003", "invoice_date": "2024-03-01",
	  "supplier_name": "Precision Tools Ltd", "po_reference": "PO-2024-003",
	  "line_items": [{"description": "Drill bit set", "quantity": 9, "unit_price": 30, "line_total": 270}],
	  "subtotal": 270, "total": 270
	}`)
	res := pipeline.Format(proc.Process(context.Background(), path))

	assert.Empty(t, res.Errors)
	assert.Equal(t, "INV-2024-003", res.InvoiceID)
	assert.Equal(t, constants.QualityStructured, res.ProcessingResults.DocumentQuality)
	require.NotNil(t, res.ProcessingResults.MatchingResults)
	assert.Equal(t, constants.MatchExactReference, res.ProcessingResults.MatchingResults.Method)
	assert.Empty(t, res.ProcessingResults.Discrepancies)
	assert.Equal(t, constants.ActionAutoApprove, res.ProcessingResults.RecommendedAction)
	assert.Equal(t, "template", res.ProcessingResults.NarrativeSource)
}

func TestProcessorUnknownSupplierEscalates(t *testing.T) {
	proc, err := Processor(testConfig(), orders(), nil)
	require.NoError(t, err)

	path := writeInvoice(t, `{
	  "invoice_number": "INV-9", "invoice_date": "2024-03-01",
	  "supplier_name": "Completely Unrelated Bakery",
	  "line_items": [{"description": "Sourdough loaf", "quantity": 3, "unit_price": 4, "line_total": 12}],
	  "total": 12
	}`)
	res := pipeline.Format(proc.Process(context.Background(), path))
	assert.Equal(t, constants.ActionEscalate, res.ProcessingResults.RecommendedAction)
	assert.Equal(t, constants.MatchNone, res.ProcessingResults.MatchingResults.Method)
}

func TestProcessorRejectsUnknownNarrator(t *testing.T) {
	cfg := testConfig()
	cfg.Narration.Provider = "carrier-pigeon"
	_, err := Processor(cfg, nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Logger(common.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
