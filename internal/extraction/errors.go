package extraction

import (
	"errors"
	"fmt"

	"github.com/zombor/invoice-extractor/internal/invoice"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

var (
	// ErrUnrecognizedDocument is returned when no extraction strategy fits the document
	ErrUnrecognizedDocument = errors.New("unrecognized document")
	// ErrNoInvoiceRows is returned for a spreadsheet without any grouped invoice row
	ErrNoInvoiceRows = errors.New("spreadsheet has no invoice rows")
)

// StageError names the pipeline stage a failure happened in
type StageError struct {
	Stage  Stage
	Source string
	Err    error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *StageError) Unwrap() error {
	return e.Err
}

// Error kinds reported to callers
const (
	KindTransport            = "TransportError"
	KindInvalidOutput        = "InvalidAIOutput"
	KindSchemaViolation      = "SchemaViolation"
	KindUnrecognizedDocument = "UnrecognizedDocument"
	KindInternal             = "Internal"
)

// ErrorReport is the serialisable form of a pipeline failure
type ErrorReport struct {
	Stage      Stage               `json:"stage"`
	Kind       string              `json:"kind"`
	Message    string              `json:"message"`
	Violations []invoice.Violation `json:"violations,omitempty"`
}

// ReportFor describes err for display. It returns nil for a nil error.
func ReportFor(err error) *ErrorReport {
	if err == nil {
		return nil
	}

	report := &ErrorReport{Stage: StageFailed, Kind: KindInternal, Message: err.Error()}

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		report.Stage = stageErr.Stage
	}

	var schemaErr *invoice.SchemaViolationError
	switch {
	case errors.As(err, &schemaErr):
		report.Kind = KindSchemaViolation
		report.Violations = schemaErr.Violations
	case errors.Is(err, scanning.ErrTransport):
		report.Kind = KindTransport
	case errors.Is(err, scanning.ErrInvalidOutput):
		report.Kind = KindInvalidOutput
	case errors.Is(err, ErrUnrecognizedDocument), errors.Is(err, ErrNoInvoiceRows):
		report.Kind = KindUnrecognizedDocument
	}
	return report
}
