package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// defaultImageConfidence is used when tesseract reports no word confidences.
const defaultImageConfidence = 0.5

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.IMAGE, Pages: 1, Method: "image-ocr", Language: e.cfg.TesseractLang}

	src := path
	if e.cfg.Preprocess {
		tmpDir, err := os.MkdirTemp("", "ir-img-*")
		if err != nil {
			return res, err
		}
		defer func() { _ = os.RemoveAll(tmpDir) }()
		if out, err := preprocessImage(path, tmpDir); err == nil {
			src = out
		} else {
			res.Warnings = append(res.Warnings, err.Error())
		}
	}

	txt, warn, err := e.tesseractOCR(ctx, src)
	res.Warnings = append(res.Warnings, warn...)
	if err != nil {
		res.Quality = constants.QualityUnreadable
		return res, err
	}
	res.Text = Normalize(txt)

	conf, warn, err := e.tesseractTSVConfidence(ctx, src)
	res.Warnings = append(res.Warnings, warn...)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	}
	if conf <= 0 {
		conf = defaultImageConfidence
	}
	res.Confidence = conf
	res.Quality = imageQuality(conf)
	if res.Text == "" {
		res.Quality = constants.QualityUnreadable
		res.Confidence = 0
	}
	return res, nil
}

// preprocessImage writes a grayscale, contrast-boosted, sharpened copy of in under dir.
func preprocessImage(in, dir string) (string, error) {
	img, err := imaging.Open(in, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("preprocess open: %w", err)
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 20)
	gray = imaging.Sharpen(gray, 1.0)

	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	out := filepath.Join(dir, base+"-prep.png")
	if err := imaging.Save(gray, out); err != nil {
		return "", fmt.Errorf("preprocess save: %w", err)
	}
	return out, nil
}

func (e *Extractor) tesseractArgs(path string, extra ...string) []string {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang,
		"--oem", strconv.Itoa(e.cfg.OEM),
		"--psm", strconv.Itoa(e.cfg.PSM),
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, extra...)
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang> --oem 3 --psm 6
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path)...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float64, []string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path, "tsv")...)
	if err != nil {
		return 0, []string{string(errb)}, fmt.Errorf("tesseract TSV: %w", err)
	}
	return meanTSVConfidence(string(out)), nil, nil
}

// meanTSVConfidence averages the conf column over word rows that carry text.
func meanTSVConfidence(tsv string) float64 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		if strings.TrimSpace(cols[11]) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n / 100.0
}

func imageQuality(conf float64) string {
	switch {
	case conf >= 0.90:
		return constants.QualityExcellent
	case conf >= 0.80:
		return constants.QualityGood
	case conf >= 0.65:
		return constants.QualityAcceptable
	default:
		return constants.QualityPoor
	}
}
