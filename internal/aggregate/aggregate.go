// Package aggregate flattens validated records into the invoice, customer
// and product tables shown to users.
package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-extractor/internal/invoice"
)

const (
	dateLayout  = "2006-01-02"
	placeholder = "-"
)

// ProductLine is one product sold on an invoice
type ProductLine struct {
	Name         string
	Quantity     float64
	UnitPrice    float64
	Tax          float64
	PriceWithTax float64
	Discount     float64
}

// InvoiceEntry is one invoice with its customer and product lines. Customer
// TotalPurchaseAmount is what this invoice contributes.
type InvoiceEntry struct {
	Invoice  invoice.Invoice
	Customer invoice.Customer
	Products []ProductLine
}

// InvoiceRow is one line of the invoices table
type InvoiceRow struct {
	Serial       int     `json:"serial"`
	InvoiceID    string  `json:"invoiceId"`
	CustomerName string  `json:"customerName"`
	ProductName  string  `json:"productName"`
	Quantity     float64 `json:"quantity"`
	Tax          float64 `json:"tax"`
	TotalAmount  float64 `json:"totalAmount"`
	Date         string  `json:"date"`
}

// CustomerRow is one line of the customers table
type CustomerRow struct {
	CustomerName string  `json:"customerName"`
	Phone        string  `json:"phone"`
	Email        string  `json:"email"`
	TotalAmount  float64 `json:"totalAmount"`
	Invoices     int     `json:"invoices"`
	PurchaseDate string  `json:"purchaseDate"`
}

// ProductRow is one line of the products table
type ProductRow struct {
	ProductName  string  `json:"productName"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unitPrice"`
	Tax          float64 `json:"tax"`
	PriceWithTax float64 `json:"priceWithTax"`
	Discount     float64 `json:"discount"`
	TotalRevenue float64 `json:"totalRevenue"`
	LastSoldDate string  `json:"lastSoldDate"`
}

// Tables are the flat views of a batch
type Tables struct {
	InvoicesTable  []InvoiceRow  `json:"invoicesTable"`
	CustomersTable []CustomerRow `json:"customersTable"`
	ProductsTable  []ProductRow  `json:"productsTable"`
}

// EntriesFromRecord splits a record into one entry per invoice. The customer
// is matched by id, then by name.
func EntriesFromRecord(rec *invoice.Record) []InvoiceEntry {
	if rec == nil {
		return nil
	}

	productsByID := make(map[string]invoice.Product, len(rec.Products))
	for _, p := range rec.Products {
		productsByID[p.ID] = p
	}

	entries := make([]InvoiceEntry, 0, len(rec.Invoices))
	for _, inv := range rec.Invoices {
		customer := findCustomer(rec.Customers, inv)
		customer.TotalPurchaseAmount = inv.GrandTotal

		lines := make([]ProductLine, 0, len(inv.Items))
		for _, item := range inv.Items {
			lines = append(lines, ProductLine{
				Name:         item.ProductName,
				Quantity:     item.Quantity,
				UnitPrice:    item.UnitPrice,
				Tax:          item.GSTAmount,
				PriceWithTax: item.PriceWithTax,
				Discount:     productsByID[item.ProductID].Discount,
			})
		}
		entries = append(entries, InvoiceEntry{Invoice: inv, Customer: customer, Products: lines})
	}
	return entries
}

func findCustomer(customers []invoice.Customer, inv invoice.Invoice) invoice.Customer {
	for _, c := range customers {
		if c.ID != "" && c.ID == inv.CustomerID {
			return c
		}
	}
	key := invoice.NormalizeName(inv.CustomerName)
	for _, c := range customers {
		if key != "" && invoice.NormalizeName(c.Name) == key {
			return c
		}
	}
	return invoice.Customer{Name: inv.CustomerName}
}

// Aggregate builds the three tables for a batch. Customers and products are
// keyed by normalized name; repeats add their amounts and advance the dates.
// All state is local to the call.
func Aggregate(entries []InvoiceEntry) Tables {
	tables := Tables{
		InvoicesTable:  make([]InvoiceRow, 0, len(entries)),
		CustomersTable: make([]CustomerRow, 0),
		ProductsTable:  make([]ProductRow, 0),
	}
	customerIndex := make(map[string]int)
	productIndex := make(map[string]int)

	for i, entry := range entries {
		inv := entry.Invoice

		productName := ""
		if len(entry.Products) > 0 {
			productName = entry.Products[0].Name
		}
		tables.InvoicesTable = append(tables.InvoicesTable, InvoiceRow{
			Serial:       i + 1,
			InvoiceID:    orPlaceholder(inv.SerialNumber),
			CustomerName: orPlaceholder(inv.CustomerName),
			ProductName:  orPlaceholder(productName),
			Quantity:     inv.TotalQuantity,
			Tax:          inv.TotalTax,
			TotalAmount:  inv.GrandTotal,
			Date:         inv.Date,
		})

		customerName := inv.CustomerName
		if customerName == "" {
			customerName = entry.Customer.Name
		}
		key := invoice.NormalizeName(customerName)
		if key == "" {
			key = invoice.NormalizeName(invoice.UnknownCustomer)
		}
		if pos, ok := customerIndex[key]; ok {
			row := &tables.CustomersTable[pos]
			row.TotalAmount = add(row.TotalAmount, entry.Customer.TotalPurchaseAmount)
			row.Invoices++
			row.PurchaseDate = laterDate(row.PurchaseDate, inv.Date)
		} else {
			customerIndex[key] = len(tables.CustomersTable)
			tables.CustomersTable = append(tables.CustomersTable, CustomerRow{
				CustomerName: orPlaceholder(entry.Customer.Name),
				Phone:        entry.Customer.Phone,
				Email:        entry.Customer.Email,
				TotalAmount:  entry.Customer.TotalPurchaseAmount,
				Invoices:     1,
				PurchaseDate: inv.Date,
			})
		}

		for _, p := range entry.Products {
			revenue := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(p.PriceWithTax)).Round(2).InexactFloat64()
			key := invoice.NormalizeName(p.Name)
			if pos, ok := productIndex[key]; ok {
				row := &tables.ProductsTable[pos]
				row.Quantity = add(row.Quantity, p.Quantity)
				row.TotalRevenue = add(row.TotalRevenue, revenue)
				row.LastSoldDate = laterDate(row.LastSoldDate, inv.Date)
				continue
			}
			productIndex[key] = len(tables.ProductsTable)
			tables.ProductsTable = append(tables.ProductsTable, ProductRow{
				ProductName:  orPlaceholder(p.Name),
				Quantity:     p.Quantity,
				UnitPrice:    p.UnitPrice,
				Tax:          p.Tax,
				PriceWithTax: p.PriceWithTax,
				Discount:     p.Discount,
				TotalRevenue: revenue,
				LastSoldDate: inv.Date,
			})
		}
	}
	return tables
}

func add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

// laterDate keeps the most recent YYYY-MM-DD date. When either side does not
// parse, the newer non-empty value wins.
func laterDate(current, next string) string {
	if next == "" {
		return current
	}
	if current == "" {
		return next
	}
	c, errC := time.Parse(dateLayout, current)
	n, errN := time.Parse(dateLayout, next)
	if errC == nil && errN == nil && !n.After(c) {
		return current
	}
	return next
}
