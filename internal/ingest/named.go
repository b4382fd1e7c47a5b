package ingest

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// ResolveNamed maps invoice names from the configured set to paths.
// Unknown names are an error; duplicates collapse to the first occurrence.
func ResolveNamed(data common.DataConfig, names []string) ([]string, error) {
	var (
		paths []string
		bad   []string
		seen  = map[string]struct{}{}
	)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		p, ok := data.NamedInvoicePath(n)
		if !ok {
			bad = append(bad, n)
			continue
		}
		paths = append(paths, p)
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("%w: unknown invoice %s (choose from %s)",
			common.ErrInvalidInput, strings.Join(bad, ", "), strings.Join(data.NamedInvoiceKeys(), ", "))
	}
	return paths, nil
}

// ResolveAll returns every configured named invoice in name order.
func ResolveAll(data common.DataConfig) []string {
	paths, _ := ResolveNamed(data, data.NamedInvoiceKeys())
	return paths
}
