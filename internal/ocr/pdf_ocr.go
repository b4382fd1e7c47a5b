package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

const (
	textLayerMinChars   = 100
	textLayerConfidence = 0.95
	textLayerFallback   = 0.75
)

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Language: e.cfg.TesseractLang}

	direct, pages, err := e.textLayer(path)
	if err != nil || strings.TrimSpace(direct) == "" {
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("pdf text layer: %v", err))
		}
		var warns []string
		direct, pages, warns, err = e.pdfToText(ctx, path)
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("pdftotext: %v", err))
		}
	}
	direct = Normalize(direct)
	res.Pages = pages

	if len(direct) > textLayerMinChars && isGoodQuality(direct) {
		res.Text = direct
		res.Method = "pdf-text"
		res.Quality = constants.QualityExcellent
		res.Confidence = textLayerConfidence
		return res, nil
	}

	ocrText, ocrPages, conf, warns, err := e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("pdf ocr: %v", err))
	}
	ocrText = Normalize(ocrText)
	if err == nil && len(ocrText) > len(direct) {
		res.Text = ocrText
		res.Pages = ocrPages
		res.Method = "pdf-ocr"
		res.Confidence = conf
		res.Quality = rasterQuality(conf)
		return res, nil
	}

	if direct != "" {
		res.Text = direct
		res.Method = "pdf-text"
		res.Quality = constants.QualityAcceptable
		res.Confidence = textLayerFallback
		return res, nil
	}

	res.Quality = constants.QualityUnreadable
	return res, nil
}

// readTextLayer pulls the embedded text out of a PDF, row by row, one page per form feed.
func readTextLayer(path string) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", 0, err
		}
		if i > 1 {
			b.WriteString("\f")
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, w := range row.Content {
				words = append(words, w.S)
			}
			b.WriteString(strings.Join(words, " "))
			b.WriteString("\n")
		}
	}
	return b.String(), pages, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")
	return text, pages, nil, nil
}

// pdfToOCR rasterizes every page and runs tesseract on each. conf is the
// mean word confidence over the pages that reported one.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, conf float64, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "ir-pp-*")
	if err != nil {
		return "", 0, 0, nil, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", "dir", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, 0, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var (
		b          strings.Builder
		warns      []string
		sum        float64
		confidents int
	)
	for _, img := range matches {
		src := img
		if e.cfg.Preprocess {
			if out, perr := preprocessImage(img, tmpDir); perr == nil {
				src = out
			} else {
				warns = append(warns, perr.Error())
			}
		}
		txt, w, err := e.tesseractOCR(ctx, src)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)

		c, w, err := e.tesseractTSVConfidence(ctx, src)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if c > 0 {
			sum += c
			confidents++
		}
	}
	if confidents > 0 {
		conf = sum / float64(confidents)
	}
	return b.String(), len(matches), conf, warns, nil
}

func rasterQuality(conf float64) string {
	switch {
	case conf >= 0.85:
		return constants.QualityGood
	case conf >= 0.70:
		return constants.QualityAcceptable
	default:
		return constants.QualityPoor
	}
}
