package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

var currencySymbols = map[string]string{
	"GBP": "£",
	"EUR": "€",
	"USD": "$",
}

// FormatMoney renders an amount with the currency's symbol. An empty currency is GBP.
func FormatMoney(currency string, v float64) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = constants.DefaultCurrency
	}
	if sym, ok := currencySymbols[code]; ok {
		return fmt.Sprintf("%s%.2f", sym, v)
	}
	return fmt.Sprintf("%s %.2f", code, v)
}

// FormatQuantity drops the fraction for whole quantities.
func FormatQuantity(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}

// Percent renders a ratio as a whole percentage, 0.956 -> "96%".
func Percent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

// Humanize turns snake_case identifiers into words.
func Humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func StrOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
