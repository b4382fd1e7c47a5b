package llm

import (
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// maxPromptChars caps how much document text goes to the model.
const maxPromptChars = 12000

// BuildSystemPrompt composes the extraction instructions with the currency default.
func BuildSystemPrompt(req ExtractRequest) string {
	defCur := strings.ToUpper(strings.TrimSpace(req.DefaultCurrency))
	if defCur == "" {
		defCur = constants.DefaultCurrency
	}

	parts := []string{
		"You are a specialized invoice data extraction agent. Analyze the raw text of an invoice document and return ONLY JSON that matches the provided JSON Schema.",
		"Extract ALL line items with their descriptions, quantities, unit prices and line totals.",
		"Identify the purchase order reference if present; it may be labeled 'PO Number', 'Purchase Order', 'PO#' or 'PO Ref' and usually looks like PO-XXXX-XXX.",
		"Extract the supplier name and address, the supplier VAT number, the invoice number, the invoice date and the payment terms.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code; default to " + defCur + " if uncertain. Be careful with currency symbols (£, $, €).",
		"Write every amount and quantity as a plain decimal string without currency symbols or thousands separators, e.g. \"1025.00\".",
		"Give 'vat_rate' as a fraction, e.g. \"0.20\" for 20%.",
		"If the subtotal or total is not printed, calculate it from the line items.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt wraps the document text, with the filename as a hint when known.
func BuildUserPrompt(req ExtractRequest) string {
	text := req.Text
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n\n")
	}
	b.WriteString("Extract structured data from this invoice:\n\n")
	b.WriteString(text)
	return b.String()
}
