package invoice

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaViolation is matched by every *SchemaViolationError
var ErrSchemaViolation = errors.New("schema violation")

// Violation is one failed constraint, addressed by its JSON field path
// (for example "invoices[0].items").
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// String implements fmt.Stringer
func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// SchemaViolationError lists every violation found in a candidate record
type SchemaViolationError struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *SchemaViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("schema violation: %s", strings.Join(parts, "; "))
}

// Is reports whether target is ErrSchemaViolation
func (e *SchemaViolationError) Is(target error) bool {
	return target == ErrSchemaViolation
}

// Fields returns the violated field paths in order
func (e *SchemaViolationError) Fields() []string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}
