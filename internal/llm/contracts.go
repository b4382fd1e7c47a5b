package llm

import "context"

// InvoiceFields is the normalized shape we want from the LLM.
// Money and quantities travel as decimal strings; ToInvoice parses them.
type InvoiceFields struct {
	InvoiceNumber   string           `json:"invoice_number,omitempty"`
	InvoiceDate     string           `json:"invoice_date,omitempty"` // YYYY-MM-DD
	SupplierName    string           `json:"supplier_name"`
	SupplierAddress string           `json:"supplier_address,omitempty"`
	SupplierVAT     string           `json:"supplier_vat,omitempty"`
	POReference     string           `json:"po_reference,omitempty"`
	PaymentTerms    string           `json:"payment_terms,omitempty"`
	Currency        string           `json:"currency,omitempty"` // ISO 4217
	LineItems       []LineItemFields `json:"line_items"`
	Subtotal        string           `json:"subtotal,omitempty"`
	VATRate         string           `json:"vat_rate,omitempty"` // fraction, 0.20 for 20%
	VATAmount       string           `json:"vat_amount,omitempty"`
	Total           string           `json:"total"`
}

type LineItemFields struct {
	ItemCode    string `json:"item_code,omitempty"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit,omitempty"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total,omitempty"`
}

type ExtractRequest struct {
	Text            string
	FilenameHint    string
	DefaultCurrency string
}

// FieldExtractor is the interface the document provider depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (InvoiceFields, []byte /*rawJSON*/, error)
}
