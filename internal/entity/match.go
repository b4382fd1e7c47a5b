package entity

import "github.com/joseph-ayodele/invoice-reconciler/constants"

// MatchResult is the outcome of selecting a purchase order for an invoice.
type MatchResult struct {
	PO               *PurchaseOrder        `json:"-"`
	PONumber         string                `json:"matched_po,omitempty"`
	Method           constants.MatchMethod `json:"match_method"`
	Confidence       float64               `json:"po_match_confidence"`
	SupplierScore    float64               `json:"supplier_match_score"`
	SupplierMatch    bool                  `json:"supplier_match"`
	LineItemsMatched int                   `json:"line_items_matched"`
	LineItemsTotal   int                   `json:"line_items_total"`
	MatchRate        float64               `json:"match_rate"`
	DateVarianceDays *int                  `json:"date_variance_days"`
	Alternatives     []CandidateMatch      `json:"alternative_matches"`
	PotentialMatches []CandidateMatch      `json:"potential_matches,omitempty"`
	Notes            string                `json:"matching_notes"`
}

// Matched reports whether a PO was selected.
func (m *MatchResult) Matched() bool {
	return m != nil && m.PO != nil && m.Method != constants.MatchNone
}

// CandidateMatch is a runner-up PO (alternative) or a near miss (potential match).
type CandidateMatch struct {
	PONumber      string  `json:"po_number"`
	Supplier      string  `json:"supplier"`
	SupplierScore float64 `json:"supplier_match_score"`
	MatchRate     float64 `json:"item_match_rate"`
	Combined      float64 `json:"combined_score,omitempty"`
}
