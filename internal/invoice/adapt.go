package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultUnit is used for line items built from sources that carry no unit
const DefaultUnit = "PCS"

// AdaptOptions supplies what Canonicalize cannot derive from the candidate
type AdaptOptions struct {
	NewID      func() string
	Now        time.Time
	SourceFile string
}

// IsFlat reports whether the candidate uses the single-invoice
// {invoice, products, customer} shape instead of the nested record shape.
func IsFlat(candidate map[string]any) bool {
	if _, nested := candidate["invoices"]; nested {
		return false
	}
	_, ok := candidate["invoice"].(map[string]any)
	return ok
}

// Canonicalize converts a candidate into the nested record shape. Flat
// candidates are rebuilt as one invoice with derived line items; nested
// candidates pass through with their extraction metadata completed.
// Raw values are not coerced here.
func Canonicalize(candidate map[string]any, opts AdaptOptions) map[string]any {
	if opts.NewID == nil {
		opts.NewID = func() string { return "" }
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	if IsFlat(candidate) {
		return adaptFlat(candidate, opts)
	}

	out := copyMap(candidate)
	meta, ok := candidate["metadata"].(map[string]any)
	if !ok {
		meta = map[string]any{
			"totalInvoices":    float64(lenOf(candidate["invoices"])),
			"totalProducts":    float64(lenOf(candidate["products"])),
			"totalCustomers":   float64(lenOf(candidate["customers"])),
			"validationStatus": ValidationComplete,
		}
	} else {
		meta = copyMap(meta)
	}
	if isBlank(meta["extractionDate"]) {
		meta["extractionDate"] = opts.Now.UTC().Format(time.RFC3339)
	}
	if isBlank(meta["sourceFile"]) && opts.SourceFile != "" {
		meta["sourceFile"] = opts.SourceFile
	}
	out["metadata"] = meta
	return out
}

func adaptFlat(candidate map[string]any, opts AdaptOptions) map[string]any {
	inv, _ := candidate["invoice"].(map[string]any)
	cust, _ := candidate["customer"].(map[string]any)
	rawProducts, _ := candidate["products"].([]any)

	date := stringOf(inv["date"])
	var missing []string

	customerName := stringOf(cust["name"])
	if customerName == "" {
		customerName = stringOf(inv["customerName"])
	}
	var customerErrors []string
	if customerName == "" {
		customerName = UnknownCustomer
		customerErrors = append(customerErrors, "name")
		missing = append(missing, "customer.name")
	}
	if date == "" {
		missing = append(missing, "invoice.date")
	}
	serial := stringOf(inv["serialNumber"])
	if serial == "" {
		missing = append(missing, "invoice.serialNumber")
	}

	customerID := stringOf(cust["id"])
	if customerID == "" {
		customerID = opts.NewID()
	}

	productIDs := make(map[string]string)
	items := make([]any, 0, len(rawProducts))
	products := make([]any, 0, len(rawProducts))

	var totalQty, taxable, taxSum, totalSum decimal.Decimal
	for i, raw := range rawProducts {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := stringOf(p["name"])
		if name == "" {
			missing = append(missing, indexPath("products", i)+".name")
		}
		key := NormalizeName(name)
		id, ok := productIDs[key]
		if !ok {
			id = stringOf(p["id"])
			if id == "" {
				id = opts.NewID()
			}
			productIDs[key] = id
		}

		line := deriveLine(p)
		totalQty = totalQty.Add(line.quantity)
		taxable = taxable.Add(line.taxable)
		taxSum = taxSum.Add(line.tax)
		totalSum = totalSum.Add(line.total)

		unit := stringOf(p["unit"])
		if unit == "" {
			unit = DefaultUnit
		}
		items = append(items, map[string]any{
			"productId":    id,
			"productName":  name,
			"quantity":     f(line.quantity),
			"unit":         unit,
			"unitPrice":    f(line.unitPrice),
			"taxRate":      f(line.taxRate),
			"taxableValue": f(line.taxable),
			"gstAmount":    f(line.tax),
			"priceWithTax": f(line.priceWithTax),
			"totalAmount":  f(line.total),
		})
		products = append(products, map[string]any{
			"id":           id,
			"name":         name,
			"unit":         unit,
			"unitPrice":    f(line.unitPrice),
			"taxRate":      f(line.taxRate),
			"priceWithTax": f(line.priceWithTax),
			"discount":     0.0,
			"totalSold":    f(line.quantity),
			"totalRevenue": f(line.total),
			"lastSoldDate": date,
		})
	}

	totalTax := taxSum
	if v, ok := inv["tax"]; ok && !isBlank(v) {
		totalTax = dec(v)
	}
	grandTotal := totalSum
	if v, ok := inv["totalAmount"]; ok && !isBlank(v) {
		grandTotal = dec(v)
	}
	half := totalTax.Div(decimal.NewFromInt(2)).Round(2)

	purchase := grandTotal
	if v, ok := cust["totalPurchaseAmount"]; ok && !isBlank(v) {
		purchase = dec(v)
	}

	invoiceID := stringOf(inv["id"])
	if invoiceID == "" {
		invoiceID = opts.NewID()
	}

	status := ValidationComplete
	if len(missing) > 0 {
		status = ValidationPartial
	}
	if customerErrors == nil {
		customerErrors = []string{}
	}
	if missing == nil {
		missing = []string{}
	}

	phone := stringOf(cust["phone"])
	if phone == "" {
		phone = stringOf(cust["phoneNumber"])
	}

	return map[string]any{
		"invoices": []any{map[string]any{
			"id":            invoiceID,
			"serialNumber":  serial,
			"date":          date,
			"customerId":    customerID,
			"customerName":  customerName,
			"items":         items,
			"totalItems":    float64(len(items)),
			"totalQuantity": f(totalQty),
			"taxableAmount": f(taxable),
			"cgst":          f(half),
			"sgst":          f(totalTax.Sub(half)),
			"igst":          0.0,
			"totalTax":      f(totalTax),
			"subtotal":      f(taxable),
			"discount":      0.0,
			"roundOff":      0.0,
			"grandTotal":    f(grandTotal),
			"amountPayable": f(grandTotal),
			"status":        StatusPending,
		}},
		"products": products,
		"customers": []any{map[string]any{
			"id":                  customerID,
			"name":                customerName,
			"phone":               phone,
			"email":               stringOf(cust["email"]),
			"totalPurchaseAmount": f(purchase),
			"totalInvoices":       1.0,
			"purchaseDate":        date,
			"status":              CustomerActive,
			"validationErrors":    customerErrors,
		}},
		"metadata": map[string]any{
			"totalInvoices":    1.0,
			"totalProducts":    float64(len(productIDs)),
			"totalCustomers":   1.0,
			"totalRevenue":     f(grandTotal),
			"totalTax":         f(totalTax),
			"extractionDate":   opts.Now.UTC().Format(time.RFC3339),
			"sourceFile":       opts.SourceFile,
			"validationStatus": status,
			"missingFields":    missing,
			"warnings":         []string{},
		},
	}
}

type lineValues struct {
	quantity, unitPrice, taxRate, taxable, tax, priceWithTax, total decimal.Decimal
}

// deriveLine fills the line item relations from whichever of quantity, unit
// price, tax amount, line total and unit price with tax the source carries.
func deriveLine(p map[string]any) lineValues {
	l := lineValues{
		quantity:  dec(p["quantity"]),
		unitPrice: dec(p["unitPrice"]),
		tax:       dec(p["tax"]),
	}
	if l.tax.IsZero() {
		l.tax = dec(p["gstAmount"])
	}
	l.taxable = l.quantity.Mul(l.unitPrice).Round(2)

	pwt := dec(p["priceWithTax"])
	switch total := dec(p["totalAmount"]); {
	case total.IsPositive():
		l.total = total
	case pwt.IsPositive():
		l.total = l.quantity.Mul(pwt).Round(2)
	default:
		l.total = l.taxable.Add(l.tax)
	}

	switch {
	case pwt.IsPositive():
		l.priceWithTax = pwt
	case l.quantity.IsPositive():
		l.priceWithTax = l.total.Div(l.quantity).Round(2)
	}

	if rate := dec(p["taxRate"]); rate.IsPositive() {
		l.taxRate = rate
	} else if l.taxable.IsPositive() {
		l.taxRate = l.tax.Div(l.taxable).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return l
}

func dec(v any) decimal.Decimal {
	return decimal.NewFromFloat(ToNumber(v))
}

func f(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func lenOf(v any) int {
	list, _ := v.([]any)
	return len(list)
}
