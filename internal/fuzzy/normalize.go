package fuzzy

import (
	"regexp"
	"strings"
)

var (
	reSpace = regexp.MustCompile(`\s+`)
	rePunct = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.]`)
)

type suffixRule struct {
	re   *regexp.Regexp
	repl string
}

// Legal-entity suffixes are canonicalised so "Ltd" and "Limited" compare equal.
var companySuffixes = []suffixRule{
	{regexp.MustCompile(`(?i)\bltd\b\.?`), "limited"},
	{regexp.MustCompile(`(?i)\binc\b\.?`), "incorporated"},
	{regexp.MustCompile(`(?i)\bcorp\b\.?`), "corporation"},
	{regexp.MustCompile(`(?i)\bco\b\.?`), "company"},
}

// NormalizeText lowercases, collapses whitespace and strips punctuation except hyphen and period.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = rePunct.ReplaceAllString(s, "")
	s = reSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeCompanyName applies NormalizeText and canonicalises legal-entity suffixes.
func NormalizeCompanyName(name string) string {
	name = NormalizeText(name)
	for _, r := range companySuffixes {
		name = r.re.ReplaceAllString(name, r.repl)
	}
	return strings.TrimSpace(name)
}
