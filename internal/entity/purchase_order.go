package entity

// PurchaseOrder is a record from the PO database. Read-only once loaded.
type PurchaseOrder struct {
	PONumber  string     `json:"po_number"`
	Supplier  string     `json:"supplier"`
	Date      string     `json:"date"`
	Total     float64    `json:"total"`
	Currency  string     `json:"currency"`
	LineItems []LineItem `json:"line_items"`
}
