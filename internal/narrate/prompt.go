package narrate

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/utils"
)

const maxTokens = 500

const temperature = 0.3

// SystemPrompt frames the model as an audit writer.
const SystemPrompt = `You are an expert accounts payable analyst writing audit trail explanations for invoice processing decisions.

Given the processing results, write a clear, professional explanation that:
1. Summarizes what was found in the invoice
2. Explains the matching result with the purchase order
3. Details any discrepancies detected and their significance
4. Justifies the recommended action

Write in a concise, professional tone suitable for finance teams. Be specific about amounts, percentages, and reasons.
Keep it 3-5 sentences maximum.

The reasoning should be suitable for a business audit trail.`

// BuildContext summarises the run for the model.
func BuildContext(st *entity.ProcessingState) string {
	var parts []string

	if inv := st.Invoice; inv != nil {
		parts = append(parts, fmt.Sprintf(
			"Invoice: %s from %s, dated %s, total %s. Extraction confidence: %s. Document quality: %s.",
			inv.InvoiceNumber, inv.SupplierName, inv.InvoiceDate, utils.FormatMoney(inv.Currency, inv.Total),
			utils.Percent(st.ExtractionConfidence), st.DocumentQuality))
	}

	if m := st.Match; m != nil {
		if m.Matched() {
			parts = append(parts, fmt.Sprintf(
				"PO Match: %s via %s. Match confidence: %s. Line items matched: %d/%d.",
				m.PONumber, utils.Humanize(string(m.Method)), utils.Percent(m.Confidence),
				m.LineItemsMatched, m.LineItemsTotal))
		} else {
			parts = append(parts, "No PO match found.")
		}
	}

	if len(st.Discrepancies) > 0 {
		lines := make([]string, 0, len(st.Discrepancies))
		for _, d := range st.Discrepancies {
			lines = append(lines, fmt.Sprintf("- %s: %s", d.Type, d.Details))
		}
		parts = append(parts, fmt.Sprintf("Discrepancies (%d):\n%s", len(st.Discrepancies), strings.Join(lines, "\n")))
	} else {
		parts = append(parts, "No discrepancies found.")
	}

	if tv := st.TotalVariance; tv != nil {
		state := "exceeds"
		if tv.WithinTolerance {
			state = "within"
		}
		parts = append(parts, fmt.Sprintf("Total variance: %s (%.1f%%), %s tolerance.",
			utils.FormatMoney(currencyOf(st), tv.Amount), tv.Percentage*100, state))
	}

	parts = append(parts, fmt.Sprintf("Recommended action: %s. Confidence: %s. Risk level: %s.",
		utils.Humanize(string(st.Action)), utils.Percent(st.Confidence), st.RiskLevel))

	return strings.Join(parts, "\n\n")
}

// UserPrompt is the message sent alongside SystemPrompt.
func UserPrompt(st *entity.ProcessingState) string {
	return "Generate a reasoning summary for this invoice processing:\n\n" + BuildContext(st)
}

// Fallback is the template narrative assembled from the same fields the model sees.
func Fallback(st *entity.ProcessingState) string {
	var parts []string

	if inv := st.Invoice; inv != nil {
		parts = append(parts, fmt.Sprintf("Invoice %s from '%s' processed with %s confidence.",
			inv.InvoiceNumber, inv.SupplierName, utils.Percent(st.ExtractionConfidence)))
	}

	switch m := st.Match; {
	case m.Matched():
		parts = append(parts, fmt.Sprintf("Matched to %s via %s (%s confidence).",
			m.PONumber, utils.Humanize(string(m.Method)), utils.Percent(m.Confidence)))
	case m != nil:
		parts = append(parts, "No matching PO found in database.")
	}

	if len(st.Discrepancies) > 0 {
		var kinds []string
		seen := map[string]bool{}
		for _, d := range st.Discrepancies {
			k := utils.Humanize(string(d.Type))
			if !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
		parts = append(parts, fmt.Sprintf("%d discrepancy(ies) detected: %s.",
			len(st.Discrepancies), strings.Join(kinds, ", ")))
	} else {
		parts = append(parts, "No discrepancies detected.")
	}

	parts = append(parts, fmt.Sprintf("Recommended action: %s with %s confidence.",
		utils.Humanize(string(st.Action)), utils.Percent(st.Confidence)))

	return strings.Join(parts, " ")
}

func currencyOf(st *entity.ProcessingState) string {
	if st.Invoice != nil {
		return st.Invoice.Currency
	}
	return ""
}
