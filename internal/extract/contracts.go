package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

// Provider turns a document on disk into a structured invoice.
// A returned error means the document could not be read at all; the
// Extraction still carries whatever was learned (quality, raw text).
type Provider interface {
	Extract(ctx context.Context, path string) (Extraction, error)
}

// Extraction is one provider's result for one document.
type Extraction struct {
	Invoice         *entity.Invoice
	Confidence      float64
	DocumentQuality string
	Notes           string
	RawText         string
	Method          string
	Errors          []string
}

// TextExtractor is stage 1 of the document provider: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // "PDF" | "IMAGE"
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "pdftotext"
	Quality    string
	Confidence float64
	Duration   time.Duration
	Warnings   []string
}
