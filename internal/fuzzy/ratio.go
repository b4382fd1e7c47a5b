package fuzzy

import (
	"sort"
	"strings"

	"github.com/xrash/smetrics"
)

// Ratio is the normalised Indel similarity of a and b in [0,1].
// Substitutions cost 2, so the distance equals insertions plus deletions.
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dist := smetrics.WagnerFischer(a, b, 1, 1, 2)
	return clamp(1 - float64(dist)/float64(len(a)+len(b)))
}

// PartialRatio is the best Ratio of the shorter string against every
// window of the longer one: full-length windows plus the shorter prefix
// and suffix windows that hang off either end.
func PartialRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if strings.Contains(long, short) {
		return 1
	}
	n, m := len(short), len(long)
	best := 0.0
	consider := func(window string) bool {
		if r := Ratio(short, window); r > best {
			best = r
		}
		return best == 1
	}
	for i := 1; i < n; i++ {
		if consider(long[:i]) {
			return best
		}
	}
	for i := 0; i+n <= m; i++ {
		if consider(long[i : i+n]) {
			return best
		}
	}
	for i := m - n + 1; i < m; i++ {
		if consider(long[i:]) {
			return best
		}
	}
	return best
}

// TokenSortRatio compares the strings after sorting their words.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared words and each side's remainder,
// so a description that is a word-subset of the other scores 1.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	if len(inter) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(inter, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := Ratio(withA, withB)
	if base != "" {
		best = max(best, Ratio(base, withA), Ratio(base, withB))
	}
	return clamp(best)
}

func sortedTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(s) {
		out[f] = struct{}{}
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
