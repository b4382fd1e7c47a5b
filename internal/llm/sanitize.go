package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reFenceOpen  = regexp.MustCompile("^```(?:json|JSON)?\\s*")
	reFenceClose = regexp.MustCompile("\\s*```$")
	reMoneyNoise = regexp.MustCompile(`[£$€,\s]|GBP|USD|EUR`)
)

var (
	topLevelKeys = map[string]struct{}{
		"invoice_number": {}, "invoice_date": {}, "supplier_name": {}, "supplier_address": {},
		"supplier_vat": {}, "po_reference": {}, "payment_terms": {}, "currency": {},
		"line_items": {}, "subtotal": {}, "vat_rate": {}, "vat_amount": {}, "total": {},
	}
	lineItemKeys = map[string]struct{}{
		"item_code": {}, "description": {}, "quantity": {}, "unit": {}, "unit_price": {}, "line_total": {},
	}
	topLevelSynonyms = [][2]string{
		{"vendor_name", "supplier_name"},
		{"vendor", "supplier_name"},
		{"supplier", "supplier_name"},
		{"invoice_no", "invoice_number"},
		{"date", "invoice_date"},
		{"po_number", "po_reference"},
		{"purchase_order", "po_reference"},
		{"po_ref", "po_reference"},
		{"items", "line_items"},
		{"currency_code", "currency"},
		{"tax", "vat_amount"},
		{"vat", "vat_amount"},
		{"tax_amount", "vat_amount"},
		{"total_amount", "total"},
		{"amount_due", "total"},
	}
	lineItemSynonyms = [][2]string{
		{"code", "item_code"},
		{"sku", "item_code"},
		{"qty", "quantity"},
		{"price", "unit_price"},
		{"amount", "line_total"},
		{"total", "line_total"},
	}
	currencySymbols = map[string]string{"£": "GBP", "$": "USD", "€": "EUR"}
)

// StripCodeFences removes a surrounding ```json ... ``` block some models add despite instructions.
func StripCodeFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	s = reFenceOpen.ReplaceAllString(s, "")
	s = reFenceClose.ReplaceAllString(s, "")
	return []byte(strings.TrimSpace(s))
}

// NormalizeAndSanitizeJSON
// - Strips markdown code fences
// - Renames known synonyms (vendor_name -> supplier_name, qty -> quantity)
// - Drops null/empty optionals
// - Coerces numbers and "£1,025.00"-style strings to plain decimal strings
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(StripCodeFences(raw), &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	s := &sanitizer{}
	s.rename(m, topLevelSynonyms, "")
	for _, k := range []string{"subtotal", "vat_amount", "total"} {
		s.coerceDecimal(m, k, "")
	}
	s.coerceRate(m)
	for _, k := range []string{"invoice_number", "invoice_date", "supplier_name", "supplier_address",
		"supplier_vat", "po_reference", "payment_terms"} {
		s.trimString(m, k, "")
	}
	s.normalizeCurrency(m)

	switch items := m["line_items"].(type) {
	case []any:
		kept := make([]any, 0, len(items))
		for i, it := range items {
			im, ok := it.(map[string]any)
			if !ok {
				s.drop(fmt.Sprintf("line_items[%d](type)", i))
				continue
			}
			prefix := fmt.Sprintf("line_items[%d].", i)
			s.rename(im, lineItemSynonyms, prefix)
			for _, k := range []string{"quantity", "unit_price", "line_total"} {
				s.coerceDecimal(im, k, prefix)
			}
			for _, k := range []string{"item_code", "description", "unit"} {
				s.trimString(im, k, prefix)
			}
			s.removeUnknown(im, lineItemKeys, prefix)
			kept = append(kept, im)
		}
		m["line_items"] = kept
	case nil:
		// an invoice with no readable lines still validates
		m["line_items"] = []any{}
	default:
		m["line_items"] = []any{}
		s.drop("line_items(type)")
	}

	s.removeUnknown(m, topLevelKeys, "")

	out, err := json.Marshal(m)
	if err != nil {
		return nil, s.dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(s.dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", s.dropped)
	}
	return out, s.dropped, nil
}

type sanitizer struct {
	dropped []string
}

func (s *sanitizer) drop(what string) { s.dropped = append(s.dropped, what) }

func (s *sanitizer) rename(m map[string]any, synonyms [][2]string, prefix string) {
	for _, syn := range synonyms {
		from, to := syn[0], syn[1]
		v, ok := m[from]
		if !ok {
			continue
		}
		// don't overwrite existing value if already present
		if _, exists := m[to]; !exists {
			m[to] = v
		}
		delete(m, from)
		s.drop(prefix + from + "->" + to)
	}
}

func (s *sanitizer) coerceDecimal(m map[string]any, k, prefix string) {
	v, ok := m[k]
	if !ok {
		return
	}
	d, ok := parseDecimal(v)
	if !ok {
		delete(m, k)
		s.drop(prefix + k + "(invalid)")
		return
	}
	m[k] = d.String()
}

// coerceRate accepts 0.2, "20%", or 20 and stores the fraction.
func (s *sanitizer) coerceRate(m map[string]any) {
	v, ok := m["vat_rate"]
	if !ok {
		return
	}
	percent := false
	if str, isStr := v.(string); isStr && strings.HasSuffix(strings.TrimSpace(str), "%") {
		percent = true
		v = strings.TrimSuffix(strings.TrimSpace(str), "%")
	}
	d, ok := parseDecimal(v)
	if !ok {
		delete(m, "vat_rate")
		s.drop("vat_rate(invalid)")
		return
	}
	if percent || d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(decimal.NewFromInt(100))
	}
	m["vat_rate"] = d.String()
}

func (s *sanitizer) trimString(m map[string]any, k, prefix string) {
	v, ok := m[k]
	if !ok {
		return
	}
	var str string
	switch t := v.(type) {
	case string:
		str = strings.TrimSpace(t)
	case float64:
		str = decimal.NewFromFloat(t).String()
	case nil:
	default:
		delete(m, k)
		s.drop(prefix + k + "(type)")
		return
	}
	if str == "" || strings.EqualFold(str, "null") {
		delete(m, k)
		s.drop(prefix + k + "(empty)")
		return
	}
	m[k] = str
}

func (s *sanitizer) normalizeCurrency(m map[string]any) {
	v, ok := m["currency"].(string)
	if !ok {
		if _, present := m["currency"]; present {
			delete(m, "currency")
			s.drop("currency(type)")
		}
		return
	}
	c := strings.TrimSpace(v)
	if code, sym := currencySymbols[c]; sym {
		c = code
	}
	c = strings.ToUpper(c)
	if c == "" || c == "NULL" {
		delete(m, "currency")
		s.drop("currency(empty)")
		return
	}
	m["currency"] = c
}

func (s *sanitizer) removeUnknown(m map[string]any, allowed map[string]struct{}, prefix string) {
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			s.drop(prefix + k + "(unknown)")
		}
	}
}

// parseDecimal reads JSON numbers and money-looking strings.
func parseDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		clean := reMoneyNoise.ReplaceAllString(strings.TrimSpace(t), "")
		if clean == "" || strings.EqualFold(clean, "null") {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(clean)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}
