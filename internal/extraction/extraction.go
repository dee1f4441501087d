// Package extraction runs documents through the extraction pipeline:
// routing, the external model call, reply parsing, product deduplication,
// numeric sanitization and schema validation.
package extraction

import (
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-extractor/internal/invoice"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

// Stage is a state of the extraction pipeline
type Stage string

// Pipeline stages in the order a candidate passes through them
const (
	StageRouting         Stage = "ROUTING"
	StageCallingExternal Stage = "CALLING_EXTERNAL"
	StageParsing         Stage = "PARSING"
	StageDeduping        Stage = "DEDUPING"
	StageSanitizing      Stage = "SANITIZING"
	StageValidating      Stage = "VALIDATING"
	StageDone            Stage = "DONE"
	StageFailed          Stage = "FAILED"
)

// Strategy is how a document is turned into candidates
type Strategy string

const (
	StrategyInline           Strategy = "inline"
	StrategyText             Strategy = "text"
	StrategySpreadsheetRows  Strategy = "spreadsheet_rows"
	StrategySpreadsheetModel Strategy = "spreadsheet_model"
)

// SpreadsheetMode selects how spreadsheets are handled
type SpreadsheetMode string

const (
	// SpreadsheetRows builds invoices locally from grouped rows
	SpreadsheetRows SpreadsheetMode = "rows"
	// SpreadsheetModel sends every sheet to the model as JSON
	SpreadsheetModel SpreadsheetMode = "model"
)

// Document is one uploaded file
type Document struct {
	Data     []byte
	MIMEType string
	Filename string
}

// Options tune the orchestrator
type Options struct {
	// MaxAttempts bounds calls to the model per document; only transport
	// failures are retried.
	MaxAttempts int
	// CallTimeout bounds each model call; zero means no limit.
	CallTimeout time.Duration
	// RetryDelay is multiplied by the attempt number between retries.
	RetryDelay      time.Duration
	SpreadsheetMode SpreadsheetMode
	Tolerance       invoice.Tolerance
}

// DefaultOptions returns the options used by the service
func DefaultOptions() Options {
	return Options{
		MaxAttempts:     3,
		CallTimeout:     2 * time.Minute,
		RetryDelay:      time.Second,
		SpreadsheetMode: SpreadsheetRows,
		Tolerance:       invoice.DefaultTolerance,
	}
}

// IDGenerator generates unique IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type realTimeSource struct{}

func (realTimeSource) Now() time.Time {
	return time.Now()
}

// Orchestrator drives a document through the pipeline. It keeps no state
// between documents and may be used concurrently.
type Orchestrator struct {
	scanner scanning.Scanner
	opts    Options
	idGen   IDGenerator
	timeSrc TimeSource
}

// New creates an Orchestrator with uuid ids and the wall clock
func New(scanner scanning.Scanner, opts Options) *Orchestrator {
	return NewWithDeps(scanner, opts, uuidGenerator{}, realTimeSource{})
}

// NewWithDeps creates an Orchestrator with injected dependencies (for testing)
func NewWithDeps(scanner scanning.Scanner, opts Options, idGen IDGenerator, timeSrc TimeSource) *Orchestrator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.SpreadsheetMode == "" {
		opts.SpreadsheetMode = SpreadsheetRows
	}
	if opts.Tolerance == (invoice.Tolerance{}) {
		opts.Tolerance = invoice.DefaultTolerance
	}
	return &Orchestrator{
		scanner: scanner,
		opts:    opts,
		idGen:   idGen,
		timeSrc: timeSrc,
	}
}

// Outcome is the result of one candidate. Stage is StageDone on success,
// otherwise the stage that failed.
type Outcome struct {
	Index        int
	SerialNumber string
	Stage        Stage
	Record       *invoice.Record
	Err          error
}

// Batch is the result of one document
type Batch struct {
	SourceFile string
	Strategy   Strategy
	Outcomes   []Outcome
	Warnings   []string
}

// Records returns the validated records in candidate order
func (b *Batch) Records() []*invoice.Record {
	records := make([]*invoice.Record, 0, len(b.Outcomes))
	for _, o := range b.Outcomes {
		if o.Err == nil && o.Record != nil {
			records = append(records, o.Record)
		}
	}
	return records
}

// Failed returns the outcomes that did not validate
func (b *Batch) Failed() []Outcome {
	var failed []Outcome
	for _, o := range b.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err returns the first failure when no candidate succeeded, and nil otherwise
func (b *Batch) Err() error {
	if len(b.Records()) > 0 {
		return nil
	}
	for _, o := range b.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
