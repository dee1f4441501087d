package spreadsheet

import (
	"github.com/zombor/invoice-extractor/internal/invoice"
)

// BuiltInvoice is the flat candidate produced from one group of rows
type BuiltInvoice struct {
	Invoice  BuiltHeader    `json:"invoice"`
	Products []BuiltProduct `json:"products"`
	Customer BuiltCustomer  `json:"customer"`
}

// BuiltHeader carries the group totals. ProductName is the first row's
// product only.
type BuiltHeader struct {
	SerialNumber string  `json:"serialNumber"`
	CustomerName string  `json:"customerName"`
	ProductName  string  `json:"productName"`
	Quantity     float64 `json:"quantity"`
	Tax          float64 `json:"tax"`
	TotalAmount  float64 `json:"totalAmount"`
	Date         string  `json:"date"`
}

// BuiltProduct is one row of a group
type BuiltProduct struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Tax         float64 `json:"tax"`
	TotalAmount float64 `json:"totalAmount"`
}

// BuiltCustomer is taken from the first row of a group
type BuiltCustomer struct {
	Name                string  `json:"name"`
	TotalPurchaseAmount float64 `json:"totalPurchaseAmount"`
}

// BuildInvoiceFromRows sums the rows of one invoice group. It is pure and
// makes no external calls.
func BuildInvoiceFromRows(rows []Row, serialNumber string) BuiltInvoice {
	built := BuiltInvoice{
		Invoice:  BuiltHeader{SerialNumber: serialNumber},
		Products: make([]BuiltProduct, 0, len(rows)),
	}
	if len(rows) == 0 {
		return built
	}

	customerName, _ := rows[0].lookup(CustomerNameHeaders...)
	date, _ := rows[0].lookup(DateHeaders...)

	for _, row := range rows {
		name, _ := row.lookup(ProductNameHeaders...)
		p := BuiltProduct{
			Name:        name,
			Quantity:    row.number(1, QuantityHeaders...),
			UnitPrice:   row.number(0, UnitPriceHeaders...),
			Tax:         row.number(0, TaxHeaders...),
			TotalAmount: row.number(0, TotalAmountHeaders...),
		}
		built.Products = append(built.Products, p)

		built.Invoice.Quantity += p.Quantity
		built.Invoice.Tax += p.Tax
		built.Invoice.TotalAmount += p.TotalAmount
	}

	built.Invoice.CustomerName = customerName
	built.Invoice.ProductName = built.Products[0].Name
	built.Invoice.Date = date
	built.Customer = BuiltCustomer{
		Name:                customerName,
		TotalPurchaseAmount: built.Invoice.TotalAmount,
	}
	return built
}

// Flat returns the candidate tree consumed by invoice.Canonicalize
func (b BuiltInvoice) Flat() map[string]any {
	products := make([]any, 0, len(b.Products))
	for _, p := range b.Products {
		products = append(products, map[string]any{
			"name":        p.Name,
			"quantity":    p.Quantity,
			"unitPrice":   p.UnitPrice,
			"tax":         p.Tax,
			"totalAmount": p.TotalAmount,
		})
	}
	return map[string]any{
		"invoice": map[string]any{
			"serialNumber": b.Invoice.SerialNumber,
			"customerName": b.Invoice.CustomerName,
			"productName":  b.Invoice.ProductName,
			"quantity":     b.Invoice.Quantity,
			"tax":          b.Invoice.Tax,
			"totalAmount":  b.Invoice.TotalAmount,
			"date":         b.Invoice.Date,
		},
		"products": products,
		"customer": map[string]any{
			"name":                b.Customer.Name,
			"totalPurchaseAmount": b.Customer.TotalPurchaseAmount,
		},
	}
}

// number resolves the first non-empty alias as a number, or def when none is set
func (r Row) number(def float64, aliases ...string) float64 {
	raw, ok := r.lookup(aliases...)
	if !ok {
		return def
	}
	return invoice.ToNumber(raw)
}
