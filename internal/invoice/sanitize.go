package invoice

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric field names per record section
var (
	invoiceNumericFields = []string{
		"taxableAmount", "cgst", "sgst", "igst", "totalTax", "subtotal",
		"discount", "roundOff", "grandTotal", "amountPayable", "totalQuantity", "totalItems",
	}
	itemNumericFields = []string{
		"quantity", "unitPrice", "taxRate", "taxableValue", "gstAmount", "priceWithTax", "totalAmount",
	}
	productNumericFields = []string{
		"unitPrice", "taxRate", "priceWithTax", "discount", "totalSold", "totalRevenue",
	}
	customerNumericFields = []string{
		"totalPurchaseAmount", "totalInvoices",
	}
	metadataNumericFields = []string{
		"totalInvoices", "totalProducts", "totalCustomers", "totalRevenue", "totalTax",
	}
)

// ToNumber coerces an arbitrary decoded value into a finite number.
// nil, non-finite numbers, unparseable strings and any other type become 0.
// Thousands separators are stripped from strings. Signs are preserved.
func ToNumber(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case json.Number:
		return parseNumber(v.String())
	case string:
		return parseNumber(v)
	default:
		return 0
	}
}

func parseNumber(s string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if cleaned == "" {
		return 0
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return finite(n)
}

func finite(n float64) float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// Sanitize coerces every numeric field of a candidate record tree with
// ToNumber. Missing invoice, product and customer lists become empty lists;
// metadata is only touched when present. The input tree is not modified.
func Sanitize(candidate map[string]any) (map[string]any, error) {
	out := copyMap(candidate)

	invoices, err := listAt(candidate, "invoices")
	if err != nil {
		return nil, err
	}
	sanitizedInvoices := make([]any, 0, len(invoices))
	for i, raw := range invoices {
		inv, ok := raw.(map[string]any)
		if !ok {
			return nil, shapeViolation(indexPath("invoices", i), "object")
		}
		inv = copyMap(inv)

		if charges, ok := inv["charges"].(map[string]any); ok {
			coerced := make(map[string]any, len(charges))
			for key, value := range charges {
				coerced[key] = ToNumber(value)
			}
			inv["charges"] = coerced
		}
		coerceFields(inv, invoiceNumericFields)

		items, err := listAt(inv, "items")
		if err != nil {
			return nil, shapeViolation(indexPath("invoices", i)+".items", "array")
		}
		sanitizedItems := make([]any, 0, len(items))
		for j, rawItem := range items {
			item, ok := rawItem.(map[string]any)
			if !ok {
				return nil, shapeViolation(indexPath(indexPath("invoices", i)+".items", j), "object")
			}
			item = copyMap(item)
			coerceFields(item, itemNumericFields)
			sanitizedItems = append(sanitizedItems, item)
		}
		inv["items"] = sanitizedItems
		sanitizedInvoices = append(sanitizedInvoices, inv)
	}
	out["invoices"] = sanitizedInvoices

	for _, section := range []struct {
		key    string
		fields []string
	}{
		{"products", productNumericFields},
		{"customers", customerNumericFields},
	} {
		list, err := listAt(candidate, section.key)
		if err != nil {
			return nil, err
		}
		sanitized := make([]any, 0, len(list))
		for i, raw := range list {
			entry, ok := raw.(map[string]any)
			if !ok {
				return nil, shapeViolation(indexPath(section.key, i), "object")
			}
			entry = copyMap(entry)
			coerceFields(entry, section.fields)
			sanitized = append(sanitized, entry)
		}
		out[section.key] = sanitized
	}

	if meta, ok := candidate["metadata"].(map[string]any); ok {
		meta = copyMap(meta)
		coerceFields(meta, metadataNumericFields)
		out["metadata"] = meta
	}

	return out, nil
}

func coerceFields(m map[string]any, fields []string) {
	for _, f := range fields {
		m[f] = ToNumber(m[f])
	}
}

// listAt returns the list stored under key; a missing or null key is an empty list
func listAt(m map[string]any, key string) ([]any, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, shapeViolation(key, "array")
	}
	return list, nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func shapeViolation(field, want string) *SchemaViolationError {
	return &SchemaViolationError{Violations: []Violation{{
		Field:   field,
		Rule:    "type",
		Param:   want,
		Message: "must be " + article(want) + " " + want,
	}}}
}

func article(word string) string {
	if word != "" && strings.ContainsRune("aeiou", rune(word[0])) {
		return "an"
	}
	return "a"
}
