package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
)

const invoiceText = `INVOICE INV-2024-001  Date: 2024-01-15
Acme Industrial Supplies Ltd
PO Reference: PO-2024-001
Steel bolts M8  100  0.25  25.00
Total  £1,025.00`

type fakeText struct {
	res TextExtractionResult
	err error
}

func (f fakeText) Extract(context.Context, string) (TextExtractionResult, error) { return f.res, f.err }

type fakeFields struct {
	fields llm.InvoiceFields
	err    error
	req    *llm.ExtractRequest
}

func (f fakeFields) ExtractFields(_ context.Context, req llm.ExtractRequest) (llm.InvoiceFields, []byte, error) {
	if f.req != nil {
		*f.req = req
	}
	return f.fields, nil, f.err
}

func fullFields() llm.InvoiceFields {
	return llm.InvoiceFields{
		InvoiceNumber: "INV-2024-001",
		InvoiceDate:   "2024-01-15",
		SupplierName:  "Acme Industrial Supplies Ltd",
		POReference:   "PO-2024-001",
		LineItems:     []llm.LineItemFields{{Description: "Steel bolts M8", Quantity: "100", UnitPrice: "0.25"}},
		Subtotal:      "25.00",
		VATAmount:     "5.00",
		Total:         "30.00",
	}
}

func cleanText() fakeText {
	return fakeText{res: TextExtractionResult{Text: invoiceText, Quality: constants.QualityExcellent, Confidence: 0.95, Method: "pdf-text"}}
}

func TestDocumentProvider(t *testing.T) {
	var seen llm.ExtractRequest
	p := NewDocumentProvider(cleanText(), fakeFields{fields: fullFields(), req: &seen}, "", nil)

	ext, err := p.Extract(context.Background(), "/data/invoices/Invoice_1_Baseline.pdf")
	require.NoError(t, err)
	require.NotNil(t, ext.Invoice)
	assert.Equal(t, 0.95, ext.Confidence)
	assert.Equal(t, constants.QualityExcellent, ext.DocumentQuality)
	assert.Equal(t, "pdf-text", ext.Method)
	assert.Equal(t, "GBP", ext.Invoice.Currency)
	assert.Equal(t,
		"Clean PDF with excellent text quality. PO reference found: PO-2024-001 Extracted 1 line items. Overall extraction confidence: 95%",
		ext.Notes)
	assert.Equal(t, "Invoice_1_Baseline.pdf", seen.FilenameHint)
	assert.Equal(t, "GBP", seen.DefaultCurrency)
	assert.Empty(t, ext.Errors)
}

func TestDocumentProviderCompletenessCapsConfidence(t *testing.T) {
	f := fullFields()
	f.POReference = ""
	f.VATAmount = ""
	p := NewDocumentProvider(cleanText(), fakeFields{fields: f}, "GBP", nil)

	ext, err := p.Extract(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.InDelta(t, 0.85, ext.Confidence, 1e-9)
	assert.Contains(t, ext.Notes, "No PO reference found in document.")
	assert.True(t, strings.HasSuffix(ext.Notes, "Overall extraction confidence: 85%"))
}

func TestDocumentProviderLLMFailure(t *testing.T) {
	p := NewDocumentProvider(cleanText(), fakeFields{err: errors.New("status 401")}, "GBP", nil)

	ext, err := p.Extract(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Nil(t, ext.Invoice)
	assert.InDelta(t, 0.475, ext.Confidence, 1e-9)
	assert.Equal(t, "LLM extraction failed, data may be incomplete", ext.Notes)
	assert.Equal(t, []string{"LLM structured extraction failed"}, ext.Errors)

	p = NewDocumentProvider(cleanText(), nil, "GBP", nil)
	ext, err = p.Extract(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Nil(t, ext.Invoice)
	assert.Equal(t, []string{"LLM structured extraction failed"}, ext.Errors)
}

func TestDocumentProviderUnreadableText(t *testing.T) {
	tests := []struct {
		name string
		text fakeText
	}{
		{"too short", fakeText{res: TextExtractionResult{Text: "  INVOICE 12  ", Quality: constants.QualityPoor, Confidence: 0.4}}},
		{"ocr error", fakeText{err: errors.New("tesseract: exit status 1")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewDocumentProvider(tc.text, fakeFields{fields: fullFields()}, "GBP", nil)
			ext, err := p.Extract(context.Background(), "scan.jpg")
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrExtractionFailure)
			assert.Nil(t, ext.Invoice)
			assert.Equal(t, 0.0, ext.Confidence)
			assert.Equal(t, "Failed to extract text from document", ext.Notes)
			assert.NotEmpty(t, ext.DocumentQuality)
		})
	}
}

func TestCompleteness(t *testing.T) {
	assert.Equal(t, 0.0, Completeness(nil))
	assert.Equal(t, 0.0, Completeness(&entity.Invoice{}))
	assert.InDelta(t, 0.40, Completeness(&entity.Invoice{SupplierName: "Acme", LineItems: []entity.LineItem{{}}}), 1e-9)
}

func TestNotesUnknownQuality(t *testing.T) {
	n := Notes(&entity.Invoice{}, "weird", 0.5)
	assert.Equal(t, "Unknown document quality. No PO reference found in document. Extracted 0 line items. Overall extraction confidence: 50%", n)
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestStructuredProvider(t *testing.T) {
	path := writeFile(t, "inv.json", `{
	  "invoice_number": "INV-2024-003", "invoice_date": "2024-03-01",
	  "supplier_name": "Precision Tools Ltd", "po_reference": "PO-2024-003",
	  "line_items": [{"description": "Drill bit set", "quantity": 9, "unit_price": 30, "line_total": 270}],
	  "subtotal": 270, "total": 270
	}`)
	p := NewStructuredProvider("", nil)

	ext, err := p.Extract(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, ext.Invoice)
	assert.Equal(t, 1.0, ext.Confidence)
	assert.Equal(t, constants.QualityStructured, ext.DocumentQuality)
	assert.Equal(t, "json", ext.Method)
	assert.Equal(t, 270.0, ext.Invoice.Total)
	assert.Equal(t, "GBP", ext.Invoice.Currency)
	assert.True(t, strings.HasPrefix(ext.Notes, "Structured invoice data, no OCR required. PO reference found: PO-2024-003"))
}

func TestStructuredProviderFailures(t *testing.T) {
	p := NewStructuredProvider("GBP", nil)

	_, err := p.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, common.ErrExtractionFailure)

	ext, err := p.Extract(context.Background(), writeFile(t, "bad.json", `{"invoice_number": "X"`))
	assert.ErrorIs(t, err, common.ErrExtractionFailure)
	assert.Equal(t, 0.0, ext.Confidence)

	_, err = p.Extract(context.Background(), writeFile(t, "nosupplier.json", `{"total": 10, "line_items": []}`))
	assert.ErrorIs(t, err, common.ErrExtractionFailure)
}

type stubProvider string

func (s stubProvider) Extract(context.Context, string) (Extraction, error) {
	return Extraction{Method: string(s)}, nil
}

func TestRouter(t *testing.T) {
	r := NewRouter(stubProvider("document"), stubProvider("structured"))
	ctx := context.Background()

	for path, want := range map[string]string{"a.PDF": "document", "b.jpeg": "document", "c.tiff": "document", "d.json": "structured"} {
		ext, err := r.Extract(ctx, path)
		require.NoError(t, err, path)
		assert.Equal(t, want, ext.Method, path)
	}

	ext, err := r.Extract(ctx, "notes.docx")
	assert.ErrorIs(t, err, common.ErrExtractionFailure)
	assert.Equal(t, constants.QualityUnreadable, ext.DocumentQuality)

	_, err = NewRouter(nil, stubProvider("structured")).Extract(ctx, "a.pdf")
	assert.ErrorIs(t, err, common.ErrExtractionFailure)
}
