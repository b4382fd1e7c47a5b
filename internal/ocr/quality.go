package ocr

import (
	"regexp"
	"strings"
)

const (
	minQualityWords    = 10
	cleanWordThreshold = 0.7
)

var reCleanWord = regexp.MustCompile(`^[a-zA-Z0-9£$€.,\-:]+$`)

// isGoodQuality reports whether a text layer reads like real text rather than
// glyph soup: enough words, and most of them built from ordinary characters.
func isGoodQuality(text string) bool {
	words := strings.Fields(text)
	if len(words) < minQualityWords {
		return false
	}
	clean := 0
	for _, w := range words {
		if reCleanWord.MatchString(w) {
			clean++
		}
	}
	return float64(clean)/float64(len(words)) > cleanWordThreshold
}
