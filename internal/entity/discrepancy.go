package entity

import "github.com/joseph-ayodele/invoice-reconciler/constants"

// Discrepancy is a single typed difference between an invoice and its PO.
type Discrepancy struct {
	Type               constants.DiscrepancyType `json:"type"`
	Severity           constants.Severity        `json:"severity"`
	LineItemIndex      *int                      `json:"line_item_index,omitempty"`
	Field              string                    `json:"field,omitempty"`
	InvoiceValue       any                       `json:"invoice_value,omitempty"`
	POValue            any                       `json:"po_value,omitempty"`
	VariancePercentage *float64                  `json:"variance_percentage,omitempty"`
	Details            string                    `json:"details"`
	Action             constants.Action          `json:"recommended_action"`
	Confidence         float64                   `json:"confidence"`
}

// TotalVariance compares invoice and PO totals.
type TotalVariance struct {
	InvoiceTotal    float64 `json:"invoice_total"`
	POTotal         float64 `json:"po_total"`
	Amount          float64 `json:"amount"`
	Percentage      float64 `json:"percentage"`
	WithinTolerance bool    `json:"within_tolerance"`
}

// MaxSeverity returns the highest severity in ds, or 0 when ds is empty.
func MaxSeverity(ds []Discrepancy) constants.Severity {
	var top constants.Severity
	for _, d := range ds {
		if d.Severity > top {
			top = d.Severity
		}
	}
	return top
}
