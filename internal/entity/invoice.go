package entity

import "strings"

// LineItem is a single billed or ordered line.
type LineItem struct {
	ItemCode             string  `json:"item_code,omitempty"`
	Description          string  `json:"description"`
	Quantity             float64 `json:"quantity"`
	Unit                 string  `json:"unit,omitempty"`
	UnitPrice            float64 `json:"unit_price"`
	LineTotal            float64 `json:"line_total"`
	ExtractionConfidence float64 `json:"extraction_confidence,omitempty"`
}

// Invoice represents an extracted supplier invoice.
type Invoice struct {
	InvoiceNumber   string     `json:"invoice_number"`
	InvoiceDate     string     `json:"invoice_date"`
	SupplierName    string     `json:"supplier_name"`
	SupplierAddress string     `json:"supplier_address,omitempty"`
	SupplierVAT     string     `json:"supplier_vat,omitempty"`
	POReference     string     `json:"po_reference,omitempty"`
	PaymentTerms    string     `json:"payment_terms,omitempty"`
	Currency        string     `json:"currency"`
	LineItems       []LineItem `json:"line_items"`
	Subtotal        float64    `json:"subtotal"`
	VATRate         *float64   `json:"vat_rate,omitempty"`
	VATAmount       *float64   `json:"vat_amount,omitempty"`
	Total           float64    `json:"total"`
}

// HasPOReference reports whether the invoice quotes a non-blank PO number.
func (i *Invoice) HasPOReference() bool {
	return i != nil && strings.TrimSpace(i.POReference) != ""
}
