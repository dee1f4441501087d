// Package batch archives extraction results and serves them over HTTP.
package batch

import (
	"time"

	"github.com/zombor/invoice-extractor/internal/aggregate"
	"github.com/zombor/invoice-extractor/internal/extraction"
	"github.com/zombor/invoice-extractor/internal/invoice"
)

// Batch is one uploaded document with everything extracted from it
type Batch struct {
	ID          string              `json:"id"`
	SourceFile  string              `json:"sourceFile"`
	Filename    string              `json:"filename"` // path within storage
	ContentType string              `json:"contentType"`
	Strategy    extraction.Strategy `json:"strategy"`
	Outcomes    []OutcomeView       `json:"outcomes"`
	Tables      aggregate.Tables    `json:"tables"`
	Metadata    invoice.Metadata    `json:"metadata"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// OutcomeView is the stored form of one candidate result. Exactly one of
// Record and Error is set.
type OutcomeView struct {
	Index        int                     `json:"index"`
	SerialNumber string                  `json:"serialNumber,omitempty"`
	Stage        extraction.Stage        `json:"stage"`
	Record       *invoice.Record         `json:"record,omitempty"`
	Error        *extraction.ErrorReport `json:"error,omitempty"`
}

// AllFailed reports whether no candidate produced a record
func (b *Batch) AllFailed() bool {
	for _, o := range b.Outcomes {
		if o.Error == nil && o.Record != nil {
			return false
		}
	}
	return true
}

func newOutcomeView(o extraction.Outcome) OutcomeView {
	view := OutcomeView{
		Index:        o.Index,
		SerialNumber: o.SerialNumber,
		Stage:        o.Stage,
		Error:        extraction.ReportFor(o.Err),
	}
	if o.Err == nil {
		view.Record = o.Record
	}
	return view
}
