package llm

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

const (
	defaultUnit              = "units"
	lineExtractionConfidence = 0.95
)

// ToInvoice parses validated fields into an invoice. Missing line totals are
// computed from quantity × unit price; a missing subtotal is the sum of lines.
func ToInvoice(f InvoiceFields, defaultCurrency string) (*entity.Invoice, error) {
	inv := &entity.Invoice{
		InvoiceNumber:   strings.TrimSpace(f.InvoiceNumber),
		InvoiceDate:     strings.TrimSpace(f.InvoiceDate),
		SupplierName:    strings.TrimSpace(f.SupplierName),
		SupplierAddress: strings.TrimSpace(f.SupplierAddress),
		SupplierVAT:     strings.TrimSpace(f.SupplierVAT),
		POReference:     strings.TrimSpace(f.POReference),
		PaymentTerms:    strings.TrimSpace(f.PaymentTerms),
		Currency:        strings.ToUpper(strings.TrimSpace(f.Currency)),
		LineItems:       make([]entity.LineItem, 0, len(f.LineItems)),
	}
	if inv.Currency == "" {
		inv.Currency = strings.ToUpper(defaultCurrency)
	}
	if inv.Currency == "" {
		inv.Currency = constants.DefaultCurrency
	}

	sum := decimal.Zero
	for i, li := range f.LineItems {
		qty, err := requiredDecimal(li.Quantity)
		if err != nil {
			return nil, fmt.Errorf("line_items[%d].quantity: %w", i, err)
		}
		price, err := requiredDecimal(li.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("line_items[%d].unit_price: %w", i, err)
		}
		lineTotal := qty.Mul(price).Round(2)
		if strings.TrimSpace(li.LineTotal) != "" {
			if lineTotal, err = requiredDecimal(li.LineTotal); err != nil {
				return nil, fmt.Errorf("line_items[%d].line_total: %w", i, err)
			}
		}
		sum = sum.Add(lineTotal)

		unit := strings.TrimSpace(li.Unit)
		if unit == "" {
			unit = defaultUnit
		}
		inv.LineItems = append(inv.LineItems, entity.LineItem{
			ItemCode:             strings.TrimSpace(li.ItemCode),
			Description:          strings.TrimSpace(li.Description),
			Quantity:             qty.InexactFloat64(),
			Unit:                 unit,
			UnitPrice:            price.InexactFloat64(),
			LineTotal:            lineTotal.InexactFloat64(),
			ExtractionConfidence: lineExtractionConfidence,
		})
	}

	subtotal := sum
	if strings.TrimSpace(f.Subtotal) != "" {
		d, err := requiredDecimal(f.Subtotal)
		if err != nil {
			return nil, fmt.Errorf("subtotal: %w", err)
		}
		subtotal = d
	}
	inv.Subtotal = subtotal.InexactFloat64()

	var vatAmount decimal.Decimal
	if strings.TrimSpace(f.VATAmount) != "" {
		d, err := requiredDecimal(f.VATAmount)
		if err != nil {
			return nil, fmt.Errorf("vat_amount: %w", err)
		}
		vatAmount = d
		v := d.InexactFloat64()
		inv.VATAmount = &v
	}
	if strings.TrimSpace(f.VATRate) != "" {
		d, err := requiredDecimal(f.VATRate)
		if err != nil {
			return nil, fmt.Errorf("vat_rate: %w", err)
		}
		v := d.InexactFloat64()
		inv.VATRate = &v
	}

	if strings.TrimSpace(f.Total) != "" {
		d, err := requiredDecimal(f.Total)
		if err != nil {
			return nil, fmt.Errorf("total: %w", err)
		}
		inv.Total = d.InexactFloat64()
	} else {
		inv.Total = subtotal.Add(vatAmount).InexactFloat64()
	}
	return inv, nil
}

func requiredDecimal(s string) (decimal.Decimal, error) {
	d, ok := parseDecimal(s)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("not a decimal: %q", s)
	}
	return d, nil
}
