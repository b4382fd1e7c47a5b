package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	TessdataDir   string

	PSM int // default 6, a uniform block of text
	OEM int // default 3, engine picks

	// Preprocess runs grayscale/contrast/sharpen over images before tesseract.
	Preprocess bool

	ArtifactCacheDir string
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Quality    string
	Duration   time.Duration
	Warnings   []string
	Confidence float64
}

type Extractor struct {
	cfg       Config
	runner    Runner
	textLayer func(path string) (string, int, error)
	logger    *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, textLayer: readTextLayer, logger: logger}
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext)

	var (
		res ExtractionResult
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		e.logger.Error("ocr.extract.unsupported", "extension", ext)
		return ExtractionResult{Quality: constants.QualityUnreadable}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("ocr.extract.failed", "path", path, "error", err)
		return res, err
	}
	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"quality", res.Quality,
		"confidence", res.Confidence,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
