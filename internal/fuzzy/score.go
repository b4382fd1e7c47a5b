package fuzzy

import (
	"strings"
	"time"
)

// Code boosts added to a line-item description score.
const (
	ExactCodeBoost = 0.20
	NearCodeBoost  = 0.10
	nearCodeRatio  = 0.80
)

// SupplierScore compares two supplier names, ignoring word order and legal-entity suffix style.
func SupplierScore(a, b string) float64 {
	return TokenSortRatio(NormalizeCompanyName(a), NormalizeCompanyName(b))
}

// ProductScore is the better of the partial and token-set similarity of two descriptions.
func ProductScore(a, b string) float64 {
	na, nb := NormalizeText(a), NormalizeText(b)
	return max(PartialRatio(na, nb), TokenSetRatio(na, nb))
}

// CodeBoost rewards matching item codes: exact (case-insensitive) or near-identical.
func CodeBoost(a, b string) float64 {
	a, b = strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return ExactCodeBoost
	}
	if Ratio(a, b) > nearCodeRatio {
		return NearCodeBoost
	}
	return 0
}

// ReferenceScore compares PO numbers case-insensitively.
func ReferenceScore(a, b string) float64 {
	return Ratio(strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b)))
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2 January 2006",
	"02 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate accepts ISO dates and the common day-first layouts found on UK invoices.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// DaysBetween returns the absolute number of days between two dates.
func DaysBetween(a, b string) (int, bool) {
	da, ok := ParseDate(a)
	if !ok {
		return 0, false
	}
	db, ok := ParseDate(b)
	if !ok {
		return 0, false
	}
	d := int(da.Sub(db).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d, true
}

// DateProximity is a step function of the day gap. Unparsable dates score a neutral 0.5.
func DateProximity(a, b string) float64 {
	days, ok := DaysBetween(a, b)
	if !ok {
		return 0.5
	}
	switch {
	case days <= 7:
		return 1.0
	case days <= 14:
		return 0.8
	case days <= 30:
		return 0.5
	case days <= 60:
		return 0.3
	default:
		return 0.1
	}
}
