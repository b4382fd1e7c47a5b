package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as a structured output constraint and also use it locally to validate.
func BuildInvoiceJSONSchema() map[string]any {
	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"item_code":   map[string]any{"type": "string"},
			"description": map[string]any{"type": "string", "minLength": 1},
			"quantity":    decimalProp(),
			"unit":        map[string]any{"type": "string"},
			"unit_price":  decimalProp(),
			"line_total":  decimalProp(),
		},
		"required": []string{"description", "quantity", "unit_price"},
	}

	props := map[string]any{
		"invoice_number":   map[string]any{"type": "string"},
		"invoice_date":     map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"supplier_name":    map[string]any{"type": "string", "minLength": 1},
		"supplier_address": map[string]any{"type": "string"},
		"supplier_vat":     map[string]any{"type": "string"},
		"po_reference":     map[string]any{"type": "string"},
		"payment_terms":    map[string]any{"type": "string"},
		"currency":         map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		"line_items":       map[string]any{"type": "array", "items": lineItem},
		"subtotal":         decimalProp(),
		"vat_rate":         decimalProp(),
		"vat_amount":       decimalProp(),
		"total":            decimalProp(),
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"supplier_name", "line_items", "total"},
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d{1,4})?$`, // credits may be negative; unit prices can carry 4 places
	}
}
