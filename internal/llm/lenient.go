package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	reISODate  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reCurrency = regexp.MustCompile(`^[A-Z]{3}$`)
	reDecimal  = regexp.MustCompile(`^-?\d+(\.\d{1,4})?$`)

	// UK-first: 05/03/2024 is 5 March.
	dateLayouts = []string{
		"02/01/2006", "2/1/2006", "02-01-2006", "02.01.2006", "2006/01/02",
		"2 January 2006", "2 Jan 2006", "January 2, 2006", "Jan 2, 2006", "2006-1-2",
	}

	optDecimals     = []string{"subtotal", "vat_rate", "vat_amount"}
	optLineDecimals = []string{"line_total"}
)

// SanitizeOptionalFields removes or normalizes optional fields that don't meet our stricter schema,
// so the overall document can still validate. Required fields are left alone, except that
// line items missing a required field are dropped whole.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	if v, ok := m["invoice_date"].(string); ok && !reISODate.MatchString(v) {
		if iso, ok := normalizeDate(v); ok {
			m["invoice_date"] = iso
		} else {
			delete(m, "invoice_date")
			dropped = append(dropped, "invoice_date")
		}
	}

	if v, ok := m["currency"].(string); ok && !reCurrency.MatchString(v) {
		delete(m, "currency")
		dropped = append(dropped, "currency")
	}

	for _, k := range optDecimals {
		if !fixDecimal(m, k) {
			dropped = append(dropped, k)
		}
	}
	// total is required but rounding it cannot change its meaning
	fixDecimal(m, "total")

	if items, ok := m["line_items"].([]any); ok {
		kept := make([]any, 0, len(items))
		for i, it := range items {
			im, ok := it.(map[string]any)
			if !ok || !hasString(im, "description") || !fixDecimal(im, "quantity") || !fixDecimal(im, "unit_price") {
				dropped = append(dropped, fmt.Sprintf("line_items[%d]", i))
				continue
			}
			for _, k := range optLineDecimals {
				if !fixDecimal(im, k) {
					dropped = append(dropped, fmt.Sprintf("line_items[%d].%s", i, k))
				}
			}
			kept = append(kept, im)
		}
		m["line_items"] = kept
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}

// fixDecimal rounds an over-precise decimal string to 4 places and deletes
// values that are not decimals at all. It reports false when it deleted k.
func fixDecimal(m map[string]any, k string) bool {
	v, ok := m[k]
	if !ok {
		return true
	}
	s, isStr := v.(string)
	if isStr && reDecimal.MatchString(s) {
		return true
	}
	d, ok := parseDecimal(v)
	if !ok {
		delete(m, k)
		return false
	}
	m[k] = d.Round(4).String()
	return true
}

func hasString(m map[string]any, k string) bool {
	s, ok := m[k].(string)
	return ok && strings.TrimSpace(s) != ""
}

func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 && reISODate.MatchString(s[:10]) {
		return s[:10], true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

