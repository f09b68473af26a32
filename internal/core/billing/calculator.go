// Package billing implements the monetary computations of the issuance
// pipeline. All amounts are decimal with banker-free half-up rounding to two
// places, matching what the stamping authority validates against.
package billing

import (
	"github.com/shopspring/decimal"

	"facturalo/ms_cfdi_core/internal/core/fault"
)

// VATRate is the fixed IVA tasa applied to the taxable base.
var VATRate = decimal.NewFromFloat(0.16)

// Line is the minimal line-item view the calculator needs.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// Totals is the result of a tax computation over a set of lines.
type Totals struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxableBase   decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
}

// Calculate computes subtotal, discount, IVA and grand total for the given
// lines. Quantity below 1, negative unit price, negative discount or a
// negative taxable base are rejected with a ValidationError.
func Calculate(lines []Line) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, fault.NewValidation("conceptos", "se requiere al menos un concepto")
	}

	one := decimal.NewFromInt(1)
	subtotal := decimal.Zero
	discount := decimal.Zero

	for i, line := range lines {
		if line.Quantity.LessThan(one) {
			return Totals{}, fault.NewValidation("cantidad", "debe ser al menos 1")
		}
		if line.UnitPrice.IsNegative() {
			return Totals{}, fault.NewValidation("valorUnitario", "no puede ser negativo")
		}
		if line.Discount.IsNegative() {
			return Totals{}, fault.NewValidation("descuento", "no puede ser negativo")
		}

		amount := LineAmount(line)
		if amount.IsNegative() {
			return Totals{}, fault.NewValidation("descuento", "excede el importe del concepto en la posición "+decimal.NewFromInt(int64(i+1)).String())
		}

		subtotal = subtotal.Add(line.Quantity.Mul(line.UnitPrice))
		discount = discount.Add(line.Discount)
	}

	subtotal = subtotal.Round(2)
	discount = discount.Round(2)

	base := subtotal.Sub(discount)
	if base.IsNegative() {
		return Totals{}, fault.NewValidation("descuento", "la base gravable no puede ser negativa")
	}

	tax := base.Mul(VATRate).Round(2)

	return Totals{
		Subtotal:      subtotal,
		DiscountTotal: discount,
		TaxableBase:   base,
		Tax:           tax,
		Total:         base.Add(tax),
	}, nil
}

// LineAmount returns quantity × unitPrice − discount rounded to two places.
func LineAmount(line Line) decimal.Decimal {
	return line.Quantity.Mul(line.UnitPrice).Sub(line.Discount).Round(2)
}
