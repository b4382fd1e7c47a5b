// Package bootstrap wires configuration into the processing graph shared by
// the CLI and the daemon.
package bootstrap

import (
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/extract"
	"github.com/joseph-ayodele/invoice-reconciler/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-reconciler/internal/matching"
	"github.com/joseph-ayodele/invoice-reconciler/internal/narrate"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
)

// Logger builds the process logger from LOG_FORMAT and LOG_LEVEL and installs it as default.
func Logger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Extractor routes PDFs and images through OCR plus LLM field extraction and
// reads .json documents as pre-extracted invoices.
func Extractor(cfg *common.Config, logger *slog.Logger) extract.Provider {
	if logger == nil {
		logger = slog.Default()
	}
	text := ocr.NewExtractor(ocr.Config{
		Pdftotext:        cfg.OCR.Pdftotext,
		Pdftoppm:         cfg.OCR.Pdftoppm,
		Tesseract:        cfg.OCR.Tesseract,
		TessdataDir:      cfg.OCR.TessdataDir,
		DPI:              cfg.OCR.DPI,
		Preprocess:       cfg.OCR.Preprocess,
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
	}, logger)

	if cfg.LLM.APIKey == "" {
		logger.Warn("bootstrap.llm.no_api_key", "effect", "scanned documents will fail structured extraction")
	}
	fields := openai.NewClient(openai.ConfigFrom(cfg.LLM), logger)

	document := extract.NewDocumentProvider(extract.NewOCRAdapter(text), fields, constants.DefaultCurrency, logger)
	structured := extract.NewStructuredProvider(constants.DefaultCurrency, logger)
	return extract.NewRouter(document, structured)
}

// Processor builds the pipeline over a fixed PO snapshot.
func Processor(cfg *common.Config, orders []entity.PurchaseOrder, logger *slog.Logger) (*pipeline.Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	narrator, err := narrate.New(cfg.Narration, logger)
	if err != nil {
		return nil, err
	}
	selector := matching.NewSelector(orders, cfg.Thresholds, logger)
	logger.Info("bootstrap.pipeline.ready",
		"purchase_orders", len(orders),
		"narrator", narrator.Name(),
	)
	return pipeline.NewProcessor(Extractor(cfg, logger), selector, narrator, cfg.Thresholds, logger), nil
}
