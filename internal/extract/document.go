package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/llm"
	"github.com/joseph-ayodele/invoice-reconciler/internal/utils"
)

const (
	// minTextChars is the shortest trimmed text worth sending to the field extractor.
	minTextChars = 50
	// llmFailurePenalty scales the text confidence when field extraction fails.
	llmFailurePenalty = 0.5
)

// DocumentProvider reads PDFs and images: text extraction first, then LLM field extraction.
type DocumentProvider struct {
	text            TextExtractor
	fields          llm.FieldExtractor
	defaultCurrency string
	logger          *slog.Logger
}

func NewDocumentProvider(text TextExtractor, fields llm.FieldExtractor, defaultCurrency string, logger *slog.Logger) *DocumentProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultCurrency == "" {
		defaultCurrency = constants.DefaultCurrency
	}
	return &DocumentProvider{text: text, fields: fields, defaultCurrency: defaultCurrency, logger: logger}
}

func (p *DocumentProvider) Extract(ctx context.Context, path string) (Extraction, error) {
	tr, err := p.text.Extract(ctx, path)
	ext := Extraction{
		DocumentQuality: tr.Quality,
		RawText:         tr.Text,
		Method:          tr.Method,
	}
	if ext.DocumentQuality == "" {
		ext.DocumentQuality = constants.QualityUnreadable
	}
	if err != nil || len(strings.TrimSpace(tr.Text)) < minTextChars {
		ext.Notes = "Failed to extract text from document"
		p.logger.Warn("extract.document.no_text", "path", path, "chars", len(strings.TrimSpace(tr.Text)), "error", err)
		return ext, common.ExtractionFailure("Document text extraction failed", err)
	}

	inv, err := p.structure(ctx, path, tr.Text)
	if err != nil {
		ext.Confidence = tr.Confidence * llmFailurePenalty
		ext.Notes = "LLM extraction failed, data may be incomplete"
		ext.Errors = append(ext.Errors, "LLM structured extraction failed")
		p.logger.Warn("extract.document.llm_failed", "path", path, "error", err)
		return ext, nil
	}

	ext.Invoice = inv
	ext.Confidence = math.Min(tr.Confidence, Completeness(inv))
	ext.Notes = Notes(inv, ext.DocumentQuality, ext.Confidence)
	p.logger.Info("extract.document.ok",
		"path", path,
		"invoice", inv.InvoiceNumber,
		"quality", ext.DocumentQuality,
		"confidence", ext.Confidence,
	)
	return ext, nil
}

func (p *DocumentProvider) structure(ctx context.Context, path, text string) (*entity.Invoice, error) {
	if p.fields == nil {
		return nil, errors.New("no field extractor configured")
	}
	f, _, err := p.fields.ExtractFields(ctx, llm.ExtractRequest{
		Text:            text,
		FilenameHint:    filepath.Base(path),
		DefaultCurrency: p.defaultCurrency,
	})
	if err != nil {
		return nil, err
	}
	inv, err := llm.ToInvoice(f, p.defaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("convert fields: %w", err)
	}
	return inv, nil
}

type completenessCheck struct {
	weight  float64
	present func(*entity.Invoice) bool
}

// Critical fields first, then the ones that only sharpen matching.
var completenessChecks = []completenessCheck{
	{0.15, func(i *entity.Invoice) bool { return strings.TrimSpace(i.InvoiceNumber) != "" }},
	{0.10, func(i *entity.Invoice) bool { return strings.TrimSpace(i.InvoiceDate) != "" }},
	{0.15, func(i *entity.Invoice) bool { return strings.TrimSpace(i.SupplierName) != "" }},
	{0.25, func(i *entity.Invoice) bool { return len(i.LineItems) > 0 }},
	{0.15, func(i *entity.Invoice) bool { return i.Total > 0 }},
	{0.10, func(i *entity.Invoice) bool { return i.HasPOReference() }},
	{0.05, func(i *entity.Invoice) bool { return i.Subtotal > 0 }},
	{0.05, func(i *entity.Invoice) bool { return i.VATAmount != nil }},
}

// Completeness scores how much of the invoice was recovered, in [0,1].
func Completeness(inv *entity.Invoice) float64 {
	if inv == nil {
		return 0
	}
	var score, total float64
	for _, c := range completenessChecks {
		total += c.weight
		if c.present(inv) {
			score += c.weight
		}
	}
	return score / total
}

var qualityNotes = map[string]string{
	constants.QualityExcellent:  "Clean PDF with excellent text quality.",
	constants.QualityGood:       "Good quality document, minor OCR corrections may be needed.",
	constants.QualityAcceptable: "Acceptable document quality, some fields may be unclear.",
	constants.QualityPoor:       "Poor document quality, extraction may be incomplete.",
	constants.QualityStructured: "Structured invoice data, no OCR required.",
}

// Notes renders the human-readable extraction summary.
func Notes(inv *entity.Invoice, quality string, confidence float64) string {
	q, ok := qualityNotes[quality]
	if !ok {
		q = "Unknown document quality."
	}
	parts := []string{q}
	if inv.HasPOReference() {
		parts = append(parts, "PO reference found: "+strings.TrimSpace(inv.POReference))
	} else {
		parts = append(parts, "No PO reference found in document.")
	}
	parts = append(parts,
		fmt.Sprintf("Extracted %d line items.", len(inv.LineItems)),
		"Overall extraction confidence: "+utils.Percent(confidence),
	)
	return strings.Join(parts, " ")
}
