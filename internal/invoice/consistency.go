package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tolerance bounds how far a stated amount may drift from the amount
// recomputed from its parts before it is reported.
type Tolerance struct {
	Absolute float64
	Relative float64
}

// DefaultTolerance allows one currency unit or one percent, whichever is larger
var DefaultTolerance = Tolerance{Absolute: 1.00, Relative: 0.01}

func (t Tolerance) allows(stated, expected decimal.Decimal) bool {
	limit := decimal.NewFromFloat(t.Absolute)
	if rel := expected.Abs().Mul(decimal.NewFromFloat(t.Relative)); rel.GreaterThan(limit) {
		limit = rel
	}
	return stated.Sub(expected).Abs().LessThanOrEqual(limit)
}

// CheckConsistency recomputes the invoice and line item arithmetic of a
// validated record and returns a warning for every stated amount that
// diverges beyond tol. The warnings are also appended to the record
// metadata. No amount is changed.
func CheckConsistency(rec *Record, tol Tolerance) []string {
	var warnings []string
	warn := func(path, field string, stated, expected decimal.Decimal) {
		if tol.allows(stated, expected) {
			return
		}
		warnings = append(warnings, fmt.Sprintf("%s.%s: stated %s, expected %s",
			path, field, stated.StringFixed(2), expected.StringFixed(2)))
	}

	hundred := decimal.NewFromInt(100)
	for i, inv := range rec.Invoices {
		path := indexPath("invoices", i)

		totalTax := decimal.NewFromFloat(inv.TotalTax)
		expectedTax := decimal.NewFromFloat(inv.CGST).
			Add(decimal.NewFromFloat(inv.SGST)).
			Add(decimal.NewFromFloat(inv.IGST))
		warn(path, "totalTax", totalTax, expectedTax)

		expectedGrand := decimal.NewFromFloat(inv.Subtotal).
			Sub(decimal.NewFromFloat(inv.Discount)).
			Add(totalTax).
			Add(decimal.NewFromFloat(inv.RoundOff)).
			Add(decimal.NewFromFloat(inv.Charges.Total()))
		warn(path, "grandTotal", decimal.NewFromFloat(inv.GrandTotal), expectedGrand)

		for j, item := range inv.Items {
			itemPath := indexPath(path+".items", j)
			qty := decimal.NewFromFloat(item.Quantity)
			price := decimal.NewFromFloat(item.UnitPrice)
			rate := decimal.NewFromFloat(item.TaxRate).Div(hundred)
			taxable := decimal.NewFromFloat(item.TaxableValue)
			pwt := decimal.NewFromFloat(item.PriceWithTax)

			warn(itemPath, "taxableValue", taxable, qty.Mul(price))
			warn(itemPath, "gstAmount", decimal.NewFromFloat(item.GSTAmount), taxable.Mul(rate))
			warn(itemPath, "priceWithTax", pwt, price.Mul(decimal.NewFromInt(1).Add(rate)))
			warn(itemPath, "totalAmount", decimal.NewFromFloat(item.TotalAmount), qty.Mul(pwt))
		}
	}

	if rec.Metadata != nil && len(warnings) > 0 {
		rec.Metadata.Warnings = append(rec.Metadata.Warnings, warnings...)
	}
	return warnings
}
