package discrepancy

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/fuzzy"
	"github.com/joseph-ayodele/invoice-reconciler/internal/utils"
)

const (
	noMatchConfidence       = 0.95
	unmatchedItemConfidence = 0.85
	totalVarianceConfidence = 0.99

	supplierMismatchCeiling = 0.90
	supplierLowFloor        = 0.75
)

// Report is everything the detector contributes to a run.
type Report struct {
	Discrepancies []entity.Discrepancy
	TotalVariance *entity.TotalVariance
	Notes         string
	Matched       bool
}

// Detector compares a matched invoice and PO field by field.
type Detector struct {
	th     common.Thresholds
	logger *slog.Logger
}

func NewDetector(th common.Thresholds, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{th: th, logger: logger}
}

// pair is the input every check works from.
type pair struct {
	inv   *entity.Invoice
	po    *entity.PurchaseOrder
	match *entity.MatchResult
	items []fuzzy.ItemMatch
	th    common.Thresholds
}

type check func(p pair) []entity.Discrepancy

// checks run in this order; output order follows it.
var checks = []check{
	checkPOReference,
	checkSupplier,
	checkLineItems,
	checkUnmatchedItems,
}

// Detect runs every check. Without a matched PO it reports the single missing-PO finding.
func (d *Detector) Detect(inv *entity.Invoice, match *entity.MatchResult) (Report, error) {
	if inv == nil {
		return Report{}, common.LogicFault("discrepancy_detection", errors.New("no invoice to check"))
	}
	if !match.Matched() {
		d.logger.Info("discrepancy.detect.no_po", "invoice", inv.InvoiceNumber)
		return Report{
			Discrepancies: []entity.Discrepancy{noMatchDiscrepancy(inv)},
			Notes:         "No PO match found - cannot perform detailed discrepancy check",
		}, nil
	}

	p := pair{
		inv:   inv,
		po:    match.PO,
		match: match,
		items: fuzzy.MatchLineItems(inv.LineItems, match.PO.LineItems, d.th.LineItemMatch),
		th:    d.th,
	}
	out := []entity.Discrepancy{}
	for _, c := range checks {
		out = append(out, c(p)...)
	}

	tv := ComputeTotalVariance(inv.Total, match.PO.Total, d.th)
	if !tv.WithinTolerance {
		out = append(out, totalVarianceDiscrepancy(inv, match.PO, tv, d.th))
	}

	d.logger.Info("discrepancy.detect.ok",
		"invoice", inv.InvoiceNumber,
		"po_number", match.PO.PONumber,
		"count", len(out),
		"total_variance", tv.Amount,
		"within_tolerance", tv.WithinTolerance,
	)
	return Report{
		Discrepancies: out,
		TotalVariance: &tv,
		Notes:         Summarize(out, tv, inv.Currency),
		Matched:       true,
	}, nil
}

func noMatchDiscrepancy(inv *entity.Invoice) entity.Discrepancy {
	var invValue any
	ref := "None"
	if inv.HasPOReference() {
		invValue = inv.POReference
		ref = inv.POReference
	}
	return entity.Discrepancy{
		Type:         constants.DiscrepancyMissingPOReference,
		Severity:     constants.SeverityHigh,
		Field:        "po_reference",
		InvoiceValue: invValue,
		Details: fmt.Sprintf("Cannot match invoice to any PO. Invoice PO reference: %s. Supplier: %s.",
			ref, inv.SupplierName),
		Action:     constants.ActionEscalate,
		Confidence: noMatchConfidence,
	}
}

func checkPOReference(p pair) []entity.Discrepancy {
	if p.inv.HasPOReference() {
		return nil
	}
	return []entity.Discrepancy{{
		Type:     constants.DiscrepancyMissingPOReference,
		Severity: constants.SeverityMedium,
		Field:    "po_reference",
		POValue:  p.po.PONumber,
		Details: fmt.Sprintf("Invoice does not contain a PO reference. Fuzzy matching suggests PO %s (%.0f%% confidence).",
			p.po.PONumber, p.match.Confidence*100),
		Action:     constants.ActionFlagForReview,
		Confidence: p.match.Confidence,
	}}
}

func checkSupplier(p pair) []entity.Discrepancy {
	score := fuzzy.SupplierScore(p.inv.SupplierName, p.po.Supplier)
	if score >= supplierMismatchCeiling {
		return nil
	}
	sev := supplierSeverity(score)
	return []entity.Discrepancy{{
		Type:         constants.DiscrepancySupplierMismatch,
		Severity:     sev,
		Field:        "supplier_name",
		InvoiceValue: p.inv.SupplierName,
		POValue:      p.po.Supplier,
		Details: fmt.Sprintf("Supplier name variation detected. Invoice: '%s' vs PO: '%s' (%.0f%% similarity).",
			p.inv.SupplierName, p.po.Supplier, score*100),
		Action:     sev.Action(),
		Confidence: score,
	}}
}

func checkLineItems(p pair) []entity.Discrepancy {
	var out []entity.Discrepancy
	cur := p.inv.Currency
	for _, m := range p.items {
		inv := p.inv.LineItems[m.InvoiceIndex]
		po := p.po.LineItems[m.POIndex]
		idx := m.InvoiceIndex

		if po.UnitPrice > 0 {
			variance := relativeChange(inv.UnitPrice, po.UnitPrice)
			if math.Abs(variance) > p.th.PriceAutoApproveTolerance {
				sev := priceSeverity(math.Abs(variance), p.th)
				direction := "increase"
				if variance < 0 {
					direction = "decrease"
				}
				out = append(out, entity.Discrepancy{
					Type:               constants.DiscrepancyPriceMismatch,
					Severity:           sev,
					LineItemIndex:      intPtr(idx),
					Field:              "unit_price",
					InvoiceValue:       inv.UnitPrice,
					POValue:            po.UnitPrice,
					VariancePercentage: floatPtr(variance * 100),
					Details: fmt.Sprintf("Line item %d (%s): Invoice unit price %s vs PO price %s (%+.1f%% %s).",
						idx+1, inv.Description, utils.FormatMoney(cur, inv.UnitPrice), utils.FormatMoney(cur, po.UnitPrice), variance*100, direction),
					Action:     sev.Action(),
					Confidence: m.Score,
				})
			}
		}

		if inv.Quantity != po.Quantity {
			pct := 0.0
			if po.Quantity > 0 {
				pct = relativeChange(inv.Quantity, po.Quantity)
			}
			out = append(out, entity.Discrepancy{
				Type:               constants.DiscrepancyQuantityMismatch,
				Severity:           quantitySeverity(math.Abs(pct), p.th),
				LineItemIndex:      intPtr(idx),
				Field:              "quantity",
				InvoiceValue:       inv.Quantity,
				POValue:            po.Quantity,
				VariancePercentage: floatPtr(pct * 100),
				Details: fmt.Sprintf("Line item %d (%s): Invoice quantity %s %s vs PO quantity %s %s.",
					idx+1, inv.Description, utils.FormatQuantity(inv.Quantity), inv.Unit, utils.FormatQuantity(po.Quantity), po.Unit),
				Action:     constants.ActionFlagForReview,
				Confidence: m.Score,
			})
		}
	}
	return out
}

func checkUnmatchedItems(p pair) []entity.Discrepancy {
	var out []entity.Discrepancy
	for _, i := range fuzzy.UnmatchedInvoiceItems(p.items, len(p.inv.LineItems)) {
		item := p.inv.LineItems[i]
		out = append(out, entity.Discrepancy{
			Type:          constants.DiscrepancyExtraLineItem,
			Severity:      constants.SeverityMedium,
			LineItemIndex: intPtr(i),
			Field:         "line_item",
			InvoiceValue:  item.Description,
			Details: fmt.Sprintf("Invoice contains item not found in PO: '%s' (%s %s @ %s).",
				item.Description, utils.FormatQuantity(item.Quantity), item.Unit, utils.FormatMoney(p.inv.Currency, item.UnitPrice)),
			Action:     constants.ActionFlagForReview,
			Confidence: unmatchedItemConfidence,
		})
	}
	for _, i := range fuzzy.UnmatchedPOItems(p.items, len(p.po.LineItems)) {
		item := p.po.LineItems[i]
		out = append(out, entity.Discrepancy{
			Type:          constants.DiscrepancyMissingLineItem,
			Severity:      constants.SeverityLow,
			LineItemIndex: intPtr(i),
			Field:         "line_item",
			POValue:       item.Description,
			Details: fmt.Sprintf("PO item not found in invoice: '%s' (%s %s).",
				item.Description, utils.FormatQuantity(item.Quantity), item.Unit),
			Action:     constants.ActionFlagForReview,
			Confidence: unmatchedItemConfidence,
		})
	}
	return out
}

func totalVarianceDiscrepancy(inv *entity.Invoice, po *entity.PurchaseOrder, tv entity.TotalVariance, th common.Thresholds) entity.Discrepancy {
	sev := totalSeverity(tv.Percentage, th)
	return entity.Discrepancy{
		Type:               constants.DiscrepancyTotalVariance,
		Severity:           sev,
		Field:              "total",
		InvoiceValue:       inv.Total,
		POValue:            po.Total,
		VariancePercentage: floatPtr(tv.Percentage * 100),
		Details: fmt.Sprintf("Total invoice amount %s differs from PO total %s by %s (%.1f%%).",
			utils.FormatMoney(inv.Currency, inv.Total), utils.FormatMoney(inv.Currency, po.Total), utils.FormatMoney(inv.Currency, tv.Amount), tv.Percentage*100),
		Action:     sev.Action(),
		Confidence: totalVarianceConfidence,
	}
}

// Summarize renders the human-readable detection notes.
func Summarize(ds []entity.Discrepancy, tv entity.TotalVariance, currency string) string {
	if len(ds) == 0 {
		return fmt.Sprintf("No discrepancies detected. Total variance: %s (%.1f%%), within tolerance.",
			utils.FormatMoney(currency, tv.Amount), tv.Percentage*100)
	}

	notes := []string{fmt.Sprintf("%d discrepancy(ies) detected.", len(ds))}
	var order []constants.DiscrepancyType
	counts := map[constants.DiscrepancyType]int{}
	severe := 0
	for _, d := range ds {
		if counts[d.Type] == 0 {
			order = append(order, d.Type)
		}
		counts[d.Type]++
		if d.Severity.AtLeast(constants.SeverityHigh) {
			severe++
		}
	}
	for _, t := range order {
		notes = append(notes, fmt.Sprintf("%s: %d", t.Title(), counts[t]))
	}
	if severe > 0 {
		notes = append(notes, fmt.Sprintf("High severity issues: %d", severe))
	}
	return strings.Join(notes, " | ")
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
