package matching

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/fuzzy"
)

const (
	exactReferenceConfidence = 0.98
	nearReferenceConfidence  = 0.92
	nearReferenceRatio       = 0.96

	supplierWeight = 0.25
	itemsWeight    = 0.50
	dateWeight     = 0.25

	maxAlternatives  = 3
	alternativeFloor = 0.50
	maxPotentials    = 5
	potentialFloor   = 0.30
)

// candidate is one PO scored against the invoice.
type candidate struct {
	po       *entity.PurchaseOrder
	supplier float64
	items    fuzzy.MatchStats
	date     float64
	combined float64
}

// classification turns the top-ranked candidate into a match. Evaluated in order; first hit wins.
type classification struct {
	method  constants.MatchMethod
	factor  float64
	applies func(c candidate) bool
}

var classifications = []classification{
	{
		method:  constants.MatchFuzzySupplierProduct,
		factor:  0.95,
		applies: func(c candidate) bool { return c.combined >= 0.70 && c.supplier >= 0.80 },
	},
	{
		method:  constants.MatchProductOnly,
		factor:  0.80,
		applies: func(c candidate) bool { return c.combined >= 0.50 && c.items.Rate >= 0.70 },
	},
	{
		method:  constants.MatchProductOnly,
		factor:  0.60,
		applies: func(c candidate) bool { return c.combined >= 0.40 },
	},
}

// Selector picks the purchase order an invoice most likely bills against.
// The order slice is shared read-only across concurrent runs.
type Selector struct {
	orders []entity.PurchaseOrder
	th     common.Thresholds
	logger *slog.Logger
}

func NewSelector(orders []entity.PurchaseOrder, th common.Thresholds, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{orders: orders, th: th, logger: logger}
}

// Orders exposes the loaded PO database.
func (s *Selector) Orders() []entity.PurchaseOrder {
	return s.orders
}

// Select matches inv against the PO database. It always returns a result;
// a result with method no_match carries no PO and lists potential candidates instead.
func (s *Selector) Select(inv *entity.Invoice) *entity.MatchResult {
	if inv == nil {
		return &entity.MatchResult{Method: constants.MatchNone, Alternatives: []entity.CandidateMatch{}}
	}

	po, confidence, method := s.byReference(inv.POReference)
	var ranked []candidate
	if po != nil {
		ranked = s.score(inv)
	} else {
		ranked = s.rank(inv)
		po, confidence, method = classify(ranked)
	}
	if po == nil {
		s.logger.Info("matching.select.no_match", "invoice", inv.InvoiceNumber, "supplier", inv.SupplierName, "po_reference", inv.POReference)
		return s.noMatch(inv)
	}

	res := s.describe(inv, po, confidence, method, ranked)
	s.logger.Info("matching.select.ok",
		"invoice", inv.InvoiceNumber,
		"po_number", po.PONumber,
		"method", method,
		"confidence", res.Confidence,
		"match_rate", res.MatchRate,
	)
	return res
}

// byReference looks the quoted PO number up, exact (case-insensitive) first, then near-equal.
func (s *Selector) byReference(ref string) (*entity.PurchaseOrder, float64, constants.MatchMethod) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, 0, constants.MatchNone
	}
	for i := range s.orders {
		if strings.EqualFold(strings.TrimSpace(s.orders[i].PONumber), ref) {
			return &s.orders[i], exactReferenceConfidence, constants.MatchExactReference
		}
	}
	for i := range s.orders {
		if fuzzy.ReferenceScore(s.orders[i].PONumber, ref) > nearReferenceRatio {
			return &s.orders[i], nearReferenceConfidence, constants.MatchExactReference
		}
	}
	return nil, 0, constants.MatchNone
}

// score rates supplier and line-item similarity of every PO, in database order.
func (s *Selector) score(inv *entity.Invoice) []candidate {
	out := make([]candidate, 0, len(s.orders))
	for i := range s.orders {
		po := &s.orders[i]
		out = append(out, candidate{
			po:       po,
			supplier: fuzzy.SupplierScore(inv.SupplierName, po.Supplier),
			items:    fuzzy.Stats(fuzzy.MatchLineItems(inv.LineItems, po.LineItems, s.th.LineItemMatch), len(inv.LineItems)),
		})
	}
	return out
}

// rank adds date proximity to the scores and orders them by combined score; ties keep database order.
func (s *Selector) rank(inv *entity.Invoice) []candidate {
	out := s.score(inv)
	for i := range out {
		c := &out[i]
		c.date = fuzzy.DateProximity(inv.InvoiceDate, c.po.Date)
		c.combined = supplierWeight*c.supplier + itemsWeight*c.items.Rate*c.items.MeanScore + dateWeight*c.date
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].combined > out[j].combined })
	return out
}

func classify(ranked []candidate) (*entity.PurchaseOrder, float64, constants.MatchMethod) {
	if len(ranked) == 0 {
		return nil, 0, constants.MatchNone
	}
	top := ranked[0]
	for _, rule := range classifications {
		if rule.applies(top) {
			return top.po, clamp(top.combined * rule.factor), rule.method
		}
	}
	return nil, 0, constants.MatchNone
}

func (s *Selector) describe(inv *entity.Invoice, po *entity.PurchaseOrder, confidence float64, method constants.MatchMethod, ranked []candidate) *entity.MatchResult {
	stats := fuzzy.Stats(fuzzy.MatchLineItems(inv.LineItems, po.LineItems, s.th.LineItemMatch), len(inv.LineItems))
	supplier := fuzzy.SupplierScore(inv.SupplierName, po.Supplier)

	res := &entity.MatchResult{
		PO:               po,
		PONumber:         po.PONumber,
		Method:           method,
		Confidence:       clamp(confidence),
		SupplierScore:    supplier,
		SupplierMatch:    supplier >= s.th.SupplierMatch,
		LineItemsMatched: stats.Matched,
		LineItemsTotal:   stats.Total,
		MatchRate:        stats.Rate,
		Alternatives:     alternatives(ranked, po.PONumber),
	}
	if days, ok := fuzzy.DaysBetween(inv.InvoiceDate, po.Date); ok {
		res.DateVarianceDays = &days
	}
	res.Notes = matchingNotes(res, inv, po)
	return res
}

// alternatives lists up to three other plausible POs, best supplier similarity first.
func alternatives(ranked []candidate, selected string) []entity.CandidateMatch {
	out := []entity.CandidateMatch{}
	for _, c := range ranked {
		if c.po.PONumber == selected {
			continue
		}
		if c.supplier >= alternativeFloor || c.items.Rate >= alternativeFloor {
			out = append(out, entity.CandidateMatch{
				PONumber:      c.po.PONumber,
				Supplier:      c.po.Supplier,
				SupplierScore: round2(c.supplier),
				MatchRate:     round2(c.items.Rate),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SupplierScore > out[j].SupplierScore })
	if len(out) > maxAlternatives {
		out = out[:maxAlternatives]
	}
	return out
}

// noMatch builds the no_match result with up to five near misses at a lower bar.
func (s *Selector) noMatch(inv *entity.Invoice) *entity.MatchResult {
	potentials := []entity.CandidateMatch{}
	for i := range s.orders {
		po := &s.orders[i]
		supplier := fuzzy.SupplierScore(inv.SupplierName, po.Supplier)
		rate := fuzzy.Stats(fuzzy.MatchLineItems(inv.LineItems, po.LineItems, s.th.CandidateMatch), len(inv.LineItems)).Rate
		if supplier >= potentialFloor || rate >= potentialFloor {
			potentials = append(potentials, entity.CandidateMatch{
				PONumber:      po.PONumber,
				Supplier:      po.Supplier,
				SupplierScore: round2(supplier),
				MatchRate:     round2(rate),
				Combined:      round2((supplier + rate) / 2),
			})
		}
	}
	sort.SliceStable(potentials, func(i, j int) bool { return potentials[i].Combined > potentials[j].Combined })
	if len(potentials) > maxPotentials {
		potentials = potentials[:maxPotentials]
	}

	ref := inv.POReference
	if strings.TrimSpace(ref) == "" {
		ref = "None"
	}
	return &entity.MatchResult{
		Method:           constants.MatchNone,
		LineItemsTotal:   len(inv.LineItems),
		Alternatives:     []entity.CandidateMatch{},
		PotentialMatches: potentials,
		Notes: fmt.Sprintf("No PO match found for invoice from %s. PO reference: %s. Fuzzy matching attempted but no suitable match found.",
			inv.SupplierName, ref),
	}
}

func matchingNotes(res *entity.MatchResult, inv *entity.Invoice, po *entity.PurchaseOrder) string {
	var notes []string
	switch res.Method {
	case constants.MatchExactReference:
		notes = append(notes, fmt.Sprintf("Exact PO reference match (%s).", po.PONumber))
	case constants.MatchFuzzySupplierProduct:
		notes = append(notes, fmt.Sprintf("Fuzzy match by supplier and products to %s.", po.PONumber))
	case constants.MatchProductOnly:
		notes = append(notes, fmt.Sprintf("Product-only fuzzy match to %s (supplier: %s).", po.PONumber, po.Supplier))
	case constants.MatchNone:
	}

	if res.SupplierMatch {
		notes = append(notes, "Supplier name verified.")
	} else {
		notes = append(notes, fmt.Sprintf("Supplier mismatch: Invoice '%s' vs PO '%s'.", inv.SupplierName, po.Supplier))
	}
	notes = append(notes, fmt.Sprintf("%d/%d line items matched (%.0f%%).", res.LineItemsMatched, res.LineItemsTotal, res.MatchRate*100))
	if res.DateVarianceDays != nil {
		notes = append(notes, fmt.Sprintf("Invoice date is %d days from PO date.", *res.DateVarianceDays))
	}
	notes = append(notes, fmt.Sprintf("Match confidence: %.0f%%", res.Confidence*100))
	return strings.Join(notes, " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
