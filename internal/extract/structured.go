package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
)

const structuredConfidence = 1.0

// StructuredProvider reads invoices that are already JSON, in the same shape
// the field extractor returns.
type StructuredProvider struct {
	defaultCurrency string
	logger          *slog.Logger
}

func NewStructuredProvider(defaultCurrency string, logger *slog.Logger) *StructuredProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuredProvider{defaultCurrency: defaultCurrency, logger: logger}
}

func (p *StructuredProvider) Extract(_ context.Context, path string) (Extraction, error) {
	ext := Extraction{Method: "json", DocumentQuality: constants.QualityUnreadable}

	raw, err := os.ReadFile(path)
	if err != nil {
		ext.Notes = "Failed to read invoice document"
		return ext, common.ExtractionFailure("Invoice document could not be read", err)
	}
	ext.RawText = string(raw)

	clean, dropped, err := llm.NormalizeAndSanitizeJSON(raw, p.logger)
	if err == nil {
		err = llm.ValidateJSONAgainstSchema(llm.BuildInvoiceJSONSchema(), clean)
	}
	var f llm.InvoiceFields
	if err == nil {
		err = json.Unmarshal(clean, &f)
	}
	if err != nil {
		ext.Notes = "Invoice document is not valid invoice JSON"
		p.logger.Warn("extract.structured.invalid", "path", path, "error", err)
		return ext, common.ExtractionFailure("Invoice document is not valid invoice JSON", err)
	}

	inv, err := llm.ToInvoice(f, p.defaultCurrency)
	if err != nil {
		ext.Notes = "Invoice document is not valid invoice JSON"
		return ext, common.ExtractionFailure("Invoice document is not valid invoice JSON", err)
	}

	ext.Invoice = inv
	ext.Confidence = structuredConfidence
	ext.DocumentQuality = constants.QualityStructured
	ext.Notes = Notes(inv, ext.DocumentQuality, ext.Confidence)
	p.logger.Info("extract.structured.ok", "path", path, "invoice", inv.InvoiceNumber, "dropped", len(dropped))
	return ext, nil
}
