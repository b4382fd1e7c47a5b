package discrepancy

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

// ComputeTotalVariance compares totals in decimal arithmetic so band edges such as
// exactly 5.00 or exactly 1% are not lost to float rounding.
// A non-positive PO total yields 0%, so only the absolute amount can flag it.
func ComputeTotalVariance(invoiceTotal, poTotal float64, th common.Thresholds) entity.TotalVariance {
	po := decimal.NewFromFloat(poTotal)
	amount := decimal.NewFromFloat(invoiceTotal).Sub(po).Abs()

	pct := decimal.Zero
	if po.IsPositive() {
		pct = amount.Div(po)
	}

	within := amount.LessThanOrEqual(decimal.NewFromFloat(th.TotalVarianceAmount)) ||
		pct.LessThanOrEqual(decimal.NewFromFloat(th.TotalVariancePercent))

	return entity.TotalVariance{
		InvoiceTotal:    invoiceTotal,
		POTotal:         poTotal,
		Amount:          amount.Round(2).InexactFloat64(),
		Percentage:      pct.InexactFloat64(),
		WithinTolerance: within,
	}
}

// relativeChange returns (value-base)/base. base must be positive.
func relativeChange(value, base float64) float64 {
	b := decimal.NewFromFloat(base)
	return decimal.NewFromFloat(value).Sub(b).Div(b).InexactFloat64()
}

// Bands are inclusive at the lower bound: a variance equal to a threshold takes the higher severity.
func priceSeverity(absVariance float64, th common.Thresholds) constants.Severity {
	switch {
	case absVariance >= th.PriceEscalate:
		return constants.SeverityHigh
	case absVariance >= th.PriceFlagReview:
		return constants.SeverityMedium
	default:
		return constants.SeverityLow
	}
}

func totalSeverity(pct float64, th common.Thresholds) constants.Severity {
	switch {
	case pct >= th.TotalVarianceHighBand:
		return constants.SeverityHigh
	case pct >= th.TotalVarianceMediumBand:
		return constants.SeverityMedium
	default:
		return constants.SeverityLow
	}
}

func quantitySeverity(absPct float64, th common.Thresholds) constants.Severity {
	if absPct <= th.QuantityHighBand {
		return constants.SeverityMedium
	}
	return constants.SeverityHigh
}

func supplierSeverity(similarity float64) constants.Severity {
	if similarity >= supplierLowFloor {
		return constants.SeverityLow
	}
	return constants.SeverityMedium
}
