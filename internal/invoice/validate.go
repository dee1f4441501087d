package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a sanitized candidate tree against the record schema and
// converts it into a Record. Numeric fields must already be numbers; nothing
// is coerced here. Every violation found is reported in a single
// *SchemaViolationError.
func Validate(candidate map[string]any) (*Record, error) {
	violations := checkNumericTypes(candidate)
	decodable, shapeViolations := checkShape(candidate)
	violations = mergeViolations(violations, shapeViolations)

	raw, err := json.Marshal(decodable)
	if err != nil {
		return nil, fmt.Errorf("encoding candidate: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding candidate: %w", err)
	}

	if err := validate.Struct(&rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("validating record: %w", err)
		}
		structViolations := make([]Violation, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			structViolations = append(structViolations, Violation{
				Field:   fieldPath(fe.Namespace()),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: ruleMessage(fe),
			})
		}
		violations = mergeViolations(violations, structViolations)
	}

	if len(violations) > 0 {
		return nil, &SchemaViolationError{Violations: violations}
	}
	rec.applyDefaults()
	return &rec, nil
}

// mergeViolations appends every violation of more whose field is not already
// reported, either exactly or through a parent path.
func mergeViolations(violations, more []Violation) []Violation {
	for _, v := range more {
		covered := false
		for _, seen := range violations {
			if v.Field == seen.Field ||
				strings.HasPrefix(v.Field, seen.Field+".") ||
				strings.HasPrefix(v.Field, seen.Field+"[") {
				covered = true
				break
			}
		}
		if !covered {
			violations = append(violations, v)
		}
	}
	return violations
}

// checkShape walks the candidate along the Record type and reports every
// value whose JSON kind cannot decode into its field. The returned copy has
// those values removed so the rest of the tree still decodes.
func checkShape(candidate map[string]any) (any, []Violation) {
	var violations []Violation
	out, _ := shapeOf(candidate, reflect.TypeOf(Record{}), "", &violations)
	return out, violations
}

func shapeOf(raw any, t reflect.Type, path string, violations *[]Violation) (any, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if raw == nil {
		return nil, true
	}

	mismatch := func() (any, bool) {
		*violations = append(*violations, Violation{
			Field:   path,
			Rule:    "type",
			Param:   strings.TrimPrefix(strings.TrimPrefix(jsonKind(t), "an "), "a "),
			Message: fmt.Sprintf("must be %s, got %s", jsonKind(t), valueKind(raw)),
		})
		return nil, false
	}

	switch t.Kind() {
	case reflect.String:
		if _, ok := raw.(string); !ok {
			return mismatch()
		}
	case reflect.Bool:
		if _, ok := raw.(bool); !ok {
			return mismatch()
		}
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		if !isNumber(raw) {
			return mismatch()
		}
	case reflect.Slice:
		list, ok := raw.([]any)
		if !ok {
			return mismatch()
		}
		out := make([]any, len(list))
		for i, item := range list {
			out[i], _ = shapeOf(item, t.Elem(), indexPath(path, i), violations)
		}
		return out, true
	case reflect.Struct:
		m, ok := raw.(map[string]any)
		if !ok {
			return mismatch()
		}
		out := copyMap(m)
		for i := 0; i < t.NumField(); i++ {
			fld := t.Field(i)
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if !fld.IsExported() || name == "" || name == "-" {
				continue
			}
			v, present := m[name]
			if !present {
				continue
			}
			child := name
			if path != "" {
				child = path + "." + name
			}
			if cleaned, ok := shapeOf(v, fld.Type, child, violations); ok {
				out[name] = cleaned
			} else {
				delete(out, name)
			}
		}
		return out, true
	}
	return raw, true
}

func valueKind(v any) string {
	switch v.(type) {
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case float64, float32, int, int64, json.Number:
		return "a number"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// fieldPath drops the root struct name from a validator namespace
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s entries", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice:
		return "an array"
	default:
		return "an object"
	}
}

// checkNumericTypes walks the tree and reports every numeric field that is
// missing or not already a number.
func checkNumericTypes(candidate map[string]any) []Violation {
	var violations []Violation
	check := func(m map[string]any, path string, fields []string) {
		for _, field := range fields {
			v, ok := m[field]
			if !ok || v == nil {
				violations = append(violations, Violation{
					Field: path + "." + field, Rule: "required", Message: "is required",
				})
				continue
			}
			if !isNumber(v) {
				violations = append(violations, Violation{
					Field: path + "." + field, Rule: "type", Param: "number",
					Message: fmt.Sprintf("must be a number, got %T", v),
				})
			}
		}
	}

	invoices, _ := candidate["invoices"].([]any)
	for i, raw := range invoices {
		inv, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		path := indexPath("invoices", i)
		check(inv, path, invoiceNumericFields)
		if charges, ok := inv["charges"].(map[string]any); ok {
			for key, value := range charges {
				if !isNumber(value) {
					violations = append(violations, Violation{
						Field: path + ".charges." + key, Rule: "type", Param: "number",
						Message: fmt.Sprintf("must be a number, got %T", value),
					})
				}
			}
		}
		items, _ := inv["items"].([]any)
		for j, rawItem := range items {
			if item, ok := rawItem.(map[string]any); ok {
				check(item, indexPath(path+".items", j), itemNumericFields)
			}
		}
	}
	for _, section := range []struct {
		key    string
		fields []string
	}{
		{"products", productNumericFields},
		{"customers", customerNumericFields},
	} {
		list, _ := candidate[section.key].([]any)
		for i, raw := range list {
			if entry, ok := raw.(map[string]any); ok {
				check(entry, indexPath(section.key, i), section.fields)
			}
		}
	}
	if meta, ok := candidate["metadata"].(map[string]any); ok {
		check(meta, "metadata", metadataNumericFields)
	}
	return violations
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case float64:
		return finite(n) == n
	case float32, int, int32, int64, uint, uint32, uint64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	default:
		return false
	}
}
