package constants

// MatchMethod records which selection rule produced a PO match.
type MatchMethod string

const (
	MatchExactReference       MatchMethod = "exact_po_reference"
	MatchFuzzySupplierProduct MatchMethod = "fuzzy_supplier_product_match"
	MatchProductOnly          MatchMethod = "product_only_match"
	MatchNone                 MatchMethod = "no_match"
)

var AllMatchMethods = []MatchMethod{
	MatchExactReference,
	MatchFuzzySupplierProduct,
	MatchProductOnly,
	MatchNone,
}

// Phrase renders the method for narratives: "fuzzy supplier product match".
func (m MatchMethod) Phrase() string {
	out := []byte(m)
	for i, c := range out {
		if c == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}
