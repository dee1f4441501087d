package spreadsheet

import (
	"fmt"
	"log/slog"
	"strings"
)

// Header aliases in priority order
var (
	SerialHeaders       = []string{"Invoice No", "Invoice Number", "Serial Number", "Bill No"}
	ProductNameHeaders  = []string{"Product Name", "Item Name", "Description"}
	QuantityHeaders     = []string{"Quantity", "Qty"}
	UnitPriceHeaders    = []string{"Unit Price", "Price"}
	TaxHeaders          = []string{"Tax", "GST"}
	TotalAmountHeaders  = []string{"Total Amount"}
	CustomerNameHeaders = []string{"Customer Name", "Party Name"}
	DateHeaders         = []string{"Date", "Invoice Date"}
)

// Group is the rows sharing one invoice number, in sheet order
type Group struct {
	SerialNumber string `json:"serialNumber"`
	Rows         []Row  `json:"rows"`
}

// GroupInvoices clusters rows by invoice number. Groups are returned in the
// order their serial first appears. A row without any invoice number header
// is left out of every group and reported in the returned warnings.
func GroupInvoices(rows []Row) ([]Group, []string) {
	index := make(map[string]int)
	groups := make([]Group, 0)
	var warnings []string

	for i, row := range rows {
		serial, ok := row.lookup(SerialHeaders...)
		if !ok {
			// data rows start below the header row
			w := fmt.Sprintf("row %d: no invoice number (%s); row skipped", i+2, strings.Join(SerialHeaders, ", "))
			slog.Warn("Skipping spreadsheet row", "row", i+2, "reason", "no invoice number")
			warnings = append(warnings, w)
			continue
		}
		serial = strings.TrimSpace(serial)

		pos, seen := index[serial]
		if !seen {
			pos = len(groups)
			index[serial] = pos
			groups = append(groups, Group{SerialNumber: serial})
		}
		groups[pos].Rows = append(groups[pos].Rows, row)
	}
	return groups, warnings
}

// lookup returns the first alias holding a non-empty value, as text
func (r Row) lookup(aliases ...string) (string, bool) {
	for _, alias := range aliases {
		v, ok := r[alias]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			if t == 0 {
				continue
			}
			s = fmt.Sprint(t)
		case bool:
			if !t {
				continue
			}
			s = fmt.Sprint(t)
		default:
			s = fmt.Sprint(t)
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		return s, true
	}
	return "", false
}
