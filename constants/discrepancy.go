package constants

import (
	"strings"
)

// DiscrepancyType is the closed set of findings the detector can report.
type DiscrepancyType string

const (
	DiscrepancyPriceMismatch       DiscrepancyType = "price_mismatch"
	DiscrepancyQuantityMismatch    DiscrepancyType = "quantity_mismatch"
	DiscrepancyMissingPOReference  DiscrepancyType = "missing_po_reference"
	DiscrepancySupplierMismatch    DiscrepancyType = "supplier_mismatch"
	DiscrepancyTotalVariance       DiscrepancyType = "total_variance"
	DiscrepancyMissingLineItem     DiscrepancyType = "missing_line_item"
	DiscrepancyExtraLineItem       DiscrepancyType = "extra_line_item"
	DiscrepancyDescriptionMismatch DiscrepancyType = "description_mismatch"
)

var AllDiscrepancyTypes = []DiscrepancyType{
	DiscrepancyPriceMismatch,
	DiscrepancyQuantityMismatch,
	DiscrepancyMissingPOReference,
	DiscrepancySupplierMismatch,
	DiscrepancyTotalVariance,
	DiscrepancyMissingLineItem,
	DiscrepancyExtraLineItem,
	DiscrepancyDescriptionMismatch,
}

// Title renders "price_mismatch" as "Price Mismatch".
func (t DiscrepancyType) Title() string {
	parts := strings.Split(string(t), "_")
	for i, p := range parts {
		switch p {
		case "":
		case "po":
			parts[i] = "Po"
		default:
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// Phrase renders "price_mismatch" as "price mismatch".
func (t DiscrepancyType) Phrase() string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// Canonicalize maps loose spellings ("Price Mismatch", "price-mismatch") onto a known type.
func Canonicalize(input string) (DiscrepancyType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]DiscrepancyType{
		"price_change":    DiscrepancyPriceMismatch,
		"quantity_change": DiscrepancyQuantityMismatch,
		"extra_item":      DiscrepancyExtraLineItem,
		"missing_item":    DiscrepancyMissingLineItem,
		"missing_po":      DiscrepancyMissingPOReference,
		"no_po_reference": DiscrepancyMissingPOReference,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}
	for _, t := range AllDiscrepancyTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return "", false
}
