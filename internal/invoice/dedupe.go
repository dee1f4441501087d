package invoice

import "strings"

// Fields summed when two product entries share a normalized name. Every other
// field keeps the first non-empty value seen.
var additiveProductFields = []string{"quantity", "totalSold", "totalRevenue", "tax", "gstAmount"}

// NormalizeName is the identity key used wherever records are matched by name
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeProducts merges product entries whose names normalize to the same
// key. The first occurrence seeds the merged entry and fixes the output
// position; later duplicates add their additive fields and fill blanks.
// Entries that are not objects are rejected with a schema violation.
func NormalizeProducts(products []any) ([]any, error) {
	merged := make(map[string]map[string]any, len(products))
	order := make([]string, 0, len(products))

	for i, raw := range products {
		product, ok := raw.(map[string]any)
		if !ok {
			return nil, shapeViolation(indexPath("products", i), "object")
		}
		name, _ := product["name"].(string)
		key := NormalizeName(name)

		existing, seen := merged[key]
		if !seen {
			seed := copyMap(product)
			for _, f := range additiveProductFields {
				if v, ok := seed[f]; ok {
					seed[f] = ToNumber(v)
				}
			}
			merged[key] = seed
			order = append(order, key)
			continue
		}

		for _, f := range additiveProductFields {
			v, ok := product[f]
			if !ok {
				continue
			}
			existing[f] = ToNumber(existing[f]) + ToNumber(v)
		}
		for f, v := range product {
			if isAdditive(f) {
				continue
			}
			if isBlank(existing[f]) && !isBlank(v) {
				existing[f] = v
			}
		}
	}

	out := make([]any, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out, nil
}

func isAdditive(field string) bool {
	for _, f := range additiveProductFields {
		if f == field {
			return true
		}
	}
	return false
}

// isBlank reports whether a raw value carries no information
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return t == 0
	default:
		return false
	}
}
