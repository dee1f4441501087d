package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-extractor/internal/invoice"
)

// BuildMetadata describes a whole batch. The status is failed when nothing
// validated, partial when some candidates failed or fields are missing, and
// complete otherwise.
func BuildMetadata(tables Tables, records []*invoice.Record, failed int, warnings []string, sourceFile string, now time.Time) invoice.Metadata {
	meta := invoice.Metadata{
		TotalProducts:  float64(len(tables.ProductsTable)),
		TotalCustomers: float64(len(tables.CustomersTable)),
		ExtractionDate: now.UTC().Format(time.RFC3339),
		SourceFile:     sourceFile,
		MissingFields:  []string{},
		Warnings:       append([]string{}, warnings...),
	}

	revenue := decimal.Zero
	tax := decimal.Zero
	seenMissing := make(map[string]bool)
	for _, rec := range records {
		for _, inv := range rec.Invoices {
			meta.TotalInvoices++
			revenue = revenue.Add(decimal.NewFromFloat(inv.GrandTotal))
			tax = tax.Add(decimal.NewFromFloat(inv.TotalTax))
		}
		if rec.Metadata == nil {
			continue
		}
		for _, field := range rec.Metadata.MissingFields {
			if !seenMissing[field] {
				seenMissing[field] = true
				meta.MissingFields = append(meta.MissingFields, field)
			}
		}
		meta.Warnings = append(meta.Warnings, rec.Metadata.Warnings...)
	}
	meta.TotalRevenue = revenue.InexactFloat64()
	meta.TotalTax = tax.InexactFloat64()

	switch {
	case len(records) == 0:
		meta.ValidationStatus = invoice.ValidationFailed
	case failed > 0 || len(meta.MissingFields) > 0:
		meta.ValidationStatus = invoice.ValidationPartial
	default:
		meta.ValidationStatus = invoice.ValidationComplete
	}
	return meta
}
