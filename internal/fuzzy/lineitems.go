package fuzzy

import "github.com/joseph-ayodele/invoice-reconciler/internal/entity"

// ItemMatch pairs an invoice line with the PO line it claimed.
type ItemMatch struct {
	InvoiceIndex int
	POIndex      int
	Score        float64
}

// LineItemScore scores one invoice line against one PO line.
func LineItemScore(inv, po entity.LineItem) float64 {
	return min(1.0, ProductScore(inv.Description, po.Description)+CodeBoost(inv.ItemCode, po.ItemCode))
}

// MatchLineItems greedily assigns each invoice line, in order, to the best unclaimed
// PO line scoring at least threshold. A PO line is claimed at most once; on equal
// scores the earlier PO line wins.
func MatchLineItems(invoiceItems, poItems []entity.LineItem, threshold float64) []ItemMatch {
	matches := make([]ItemMatch, 0, len(invoiceItems))
	claimed := make([]bool, len(poItems))

	for i, inv := range invoiceItems {
		best, bestScore := -1, 0.0
		for j, po := range poItems {
			if claimed[j] {
				continue
			}
			score := LineItemScore(inv, po)
			if score > bestScore && score >= threshold {
				best, bestScore = j, score
			}
		}
		if best >= 0 {
			claimed[best] = true
			matches = append(matches, ItemMatch{InvoiceIndex: i, POIndex: best, Score: bestScore})
		}
	}
	return matches
}

// MatchStats summarises an assignment against the invoice's line count.
type MatchStats struct {
	Matched   int
	Total     int
	Rate      float64
	MeanScore float64
}

func Stats(matches []ItemMatch, invoiceItems int) MatchStats {
	st := MatchStats{Matched: len(matches), Total: invoiceItems}
	if invoiceItems > 0 {
		st.Rate = float64(len(matches)) / float64(invoiceItems)
	}
	if len(matches) > 0 {
		var sum float64
		for _, m := range matches {
			sum += m.Score
		}
		st.MeanScore = sum / float64(len(matches))
	}
	return st
}

// UnmatchedInvoiceItems returns, in order, the invoice lines no PO line was assigned to.
func UnmatchedInvoiceItems(matches []ItemMatch, n int) []int {
	return unclaimed(matches, n, func(m ItemMatch) int { return m.InvoiceIndex })
}

// UnmatchedPOItems returns, in order, the PO lines left unclaimed.
func UnmatchedPOItems(matches []ItemMatch, n int) []int {
	return unclaimed(matches, n, func(m ItemMatch) int { return m.POIndex })
}

func unclaimed(matches []ItemMatch, n int, key func(ItemMatch) int) []int {
	seen := make(map[int]struct{}, len(matches))
	for _, m := range matches {
		seen[key(m)] = struct{}{}
	}
	var out []int
	for i := 0; i < n; i++ {
		if _, ok := seen[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
