package extract

import (
	"context"

	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
)

// OCRAdapter exposes ocr.Extractor as the document provider's TextExtractor.
type OCRAdapter struct {
	e *ocr.Extractor
}

func NewOCRAdapter(e *ocr.Extractor) *OCRAdapter {
	return &OCRAdapter{e: e}
}

func (a *OCRAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	r, err := a.e.Extract(ctx, path)
	return TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Quality:    r.Quality,
		Confidence: r.Confidence,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
	}, err
}
