package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zombor/invoice-extractor/internal/invoice"
	"github.com/zombor/invoice-extractor/internal/scanning"
	"github.com/zombor/invoice-extractor/internal/spreadsheet"
)

// candidate is one untyped tree waiting for the per-candidate stages
type candidate struct {
	tree   any
	serial string
}

// Extract runs doc through the pipeline with the given prompt, or the
// default prompt when empty. Failures that end the whole document (routing,
// the model call, parsing the reply) are returned as a *StageError.
// Failures of single candidates are kept in their Outcome so that sibling
// candidates still complete.
func (o *Orchestrator) Extract(ctx context.Context, doc Document, prompt string) (*Batch, error) {
	if prompt == "" {
		prompt = scanning.DefaultPrompt
	}
	source := doc.Filename

	slog.Debug("Extraction stage", "stage", StageRouting, "source", source, "mime_type", doc.MIMEType)
	strategy, warnings, err := o.route(doc)
	if err != nil {
		return nil, &StageError{Stage: StageRouting, Source: source, Err: err}
	}

	batch := &Batch{SourceFile: source, Strategy: strategy, Warnings: warnings}

	var candidates []candidate
	switch strategy {
	case StrategySpreadsheetRows:
		candidates, warnings, err = o.rowCandidates(doc)
		batch.Warnings = append(batch.Warnings, warnings...)
		if err != nil {
			return nil, &StageError{Stage: StageRouting, Source: source, Err: err}
		}
	default:
		req, err := o.request(doc, strategy, prompt)
		if err != nil {
			return nil, &StageError{Stage: StageRouting, Source: source, Err: err}
		}

		slog.Debug("Extraction stage", "stage", StageCallingExternal, "source", source, "strategy", strategy)
		text, err := o.callExternal(ctx, req)
		if err != nil {
			return nil, &StageError{Stage: StageCallingExternal, Source: source, Err: err}
		}

		slog.Debug("Extraction stage", "stage", StageParsing, "source", source)
		tree, err := scanning.ParseResponse(text)
		if err != nil {
			return nil, &StageError{Stage: StageParsing, Source: source, Err: err}
		}
		candidates = splitCandidates(tree)
	}

	for i, c := range candidates {
		outcome := o.process(c, i, source)
		if outcome.Err != nil {
			slog.Warn("Candidate failed", "source", source, "candidate", i, "stage", outcome.Stage, "error", outcome.Err)
		}
		batch.Outcomes = append(batch.Outcomes, outcome)
	}

	slog.Info("Extracted document",
		"source", source,
		"strategy", strategy,
		"candidates", len(batch.Outcomes),
		"failed", len(batch.Failed()),
	)
	return batch, nil
}

// route picks the strategy for a document from its MIME type
func (o *Orchestrator) route(doc Document) (Strategy, []string, error) {
	mimeType := strings.ToLower(strings.TrimSpace(strings.SplitN(doc.MIMEType, ";", 2)[0]))
	if len(doc.Data) == 0 {
		return "", nil, fmt.Errorf("%w: empty document", ErrUnrecognizedDocument)
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"), mimeType == "application/pdf":
		return StrategyInline, nil, nil
	case spreadsheet.IsSpreadsheet(doc.Data):
		if o.opts.SpreadsheetMode == SpreadsheetModel {
			return StrategySpreadsheetModel, nil, nil
		}
		return StrategySpreadsheetRows, nil, nil
	}

	var warnings []string
	if spreadsheet.IsMIMEType(mimeType) {
		w := fmt.Sprintf("declared %q but the content is not a readable workbook; extracting as text", doc.MIMEType)
		slog.Warn("Unreadable workbook", "source", doc.Filename, "mime_type", doc.MIMEType)
		warnings = append(warnings, w)
	} else if !isTextType(mimeType) {
		w := fmt.Sprintf("unrecognized content type %q; extracting as text", doc.MIMEType)
		slog.Warn("Unrecognized content type", "source", doc.Filename, "mime_type", doc.MIMEType)
		warnings = append(warnings, w)
	}
	if !utf8.Valid(doc.Data) {
		return "", warnings, fmt.Errorf("%w: %q is not text", ErrUnrecognizedDocument, doc.MIMEType)
	}
	return StrategyText, warnings, nil
}

func isTextType(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return true
	case mimeType == "application/json", mimeType == "application/xml", strings.HasSuffix(mimeType, "+json"),
		strings.HasSuffix(mimeType, "+xml"):
		return true
	}
	return false
}

// request assembles the model request for a strategy that needs one
func (o *Orchestrator) request(doc Document, strategy Strategy, prompt string) (scanning.Request, error) {
	switch strategy {
	case StrategyInline:
		return scanning.Request{Prompt: prompt, Data: doc.Data, MIMEType: doc.MIMEType}, nil
	case StrategySpreadsheetModel:
		sheets, err := spreadsheet.ReadSheets(doc.Data)
		if err != nil {
			return scanning.Request{}, fmt.Errorf("%w: %w", ErrUnrecognizedDocument, err)
		}
		byName := make(map[string][]spreadsheet.Row, len(sheets))
		for _, s := range sheets {
			byName[s.Name] = s.Rows
		}
		payload, err := json.MarshalIndent(byName, "", "  ")
		if err != nil {
			return scanning.Request{}, fmt.Errorf("encoding sheets: %w", err)
		}
		return scanning.Request{Prompt: prompt + "\n\n" + string(payload)}, nil
	default:
		return scanning.Request{Prompt: prompt + "\n\n" + string(doc.Data)}, nil
	}
}

// rowCandidates builds one flat candidate per invoice group without calling
// the model.
func (o *Orchestrator) rowCandidates(doc Document) ([]candidate, []string, error) {
	rows, err := spreadsheet.ReadRows(doc.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnrecognizedDocument, err)
	}
	groups, warnings := spreadsheet.GroupInvoices(rows)
	if len(groups) == 0 {
		return nil, warnings, ErrNoInvoiceRows
	}

	candidates := make([]candidate, 0, len(groups))
	for _, g := range groups {
		built := spreadsheet.BuildInvoiceFromRows(g.Rows, g.SerialNumber)
		candidates = append(candidates, candidate{tree: built.Flat(), serial: g.SerialNumber})
	}
	return candidates, warnings, nil
}

// splitCandidates treats every element of an array reply as its own candidate
func splitCandidates(tree any) []candidate {
	if list, ok := tree.([]any); ok {
		candidates := make([]candidate, 0, len(list))
		for _, item := range list {
			candidates = append(candidates, candidate{tree: item})
		}
		return candidates
	}
	return []candidate{{tree: tree}}
}

// callExternal is the single retryable step of the pipeline. Each attempt
// is bounded by CallTimeout and abandoned as soon as ctx is done.
func (o *Orchestrator) callExternal(ctx context.Context, req scanning.Request) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", &scanning.TransportError{Provider: "scanner", Err: err}
		}

		text, err := o.scanOnce(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !errors.Is(err, scanning.ErrTransport) || ctx.Err() != nil || attempt == o.opts.MaxAttempts {
			break
		}

		slog.Warn("Model call failed, retrying",
			"error", err,
			"attempt", attempt,
			"max_attempts", o.opts.MaxAttempts,
		)
		select {
		case <-ctx.Done():
			return "", &scanning.TransportError{Provider: "scanner", Err: ctx.Err()}
		case <-time.After(o.opts.RetryDelay * time.Duration(attempt)):
		}
	}
	return "", lastErr
}

func (o *Orchestrator) scanOnce(ctx context.Context, req scanning.Request) (string, error) {
	callCtx := ctx
	if o.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.opts.CallTimeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := o.scanner.Scan(callCtx, req)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && !errors.Is(r.err, scanning.ErrTransport) &&
			(errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded)) {
			return "", &scanning.TransportError{Provider: "scanner", Err: r.err}
		}
		return r.text, r.err
	case <-callCtx.Done():
		return "", &scanning.TransportError{Provider: "scanner", Err: callCtx.Err()}
	}
}

// process runs one candidate through DEDUPING, SANITIZING and VALIDATING
func (o *Orchestrator) process(c candidate, index int, source string) Outcome {
	outcome := Outcome{Index: index, SerialNumber: c.serial}
	fail := func(stage Stage, err error) Outcome {
		outcome.Stage = stage
		outcome.Err = &StageError{Stage: stage, Source: candidateSource(source, index, c.serial), Err: err}
		return outcome
	}

	tree, ok := c.tree.(map[string]any)
	if !ok {
		return fail(StageParsing, &scanning.InvalidOutputError{
			Snippet: snippet(fmt.Sprint(c.tree)),
			Err:     errors.New("candidate is not a JSON object"),
		})
	}
	tree = invoice.Canonicalize(tree, invoice.AdaptOptions{
		NewID:      o.idGen.Generate,
		Now:        o.timeSrc.Now(),
		SourceFile: source,
	})

	slog.Debug("Extraction stage", "stage", StageDeduping, "source", source, "candidate", index)
	if raw, present := tree["products"]; present && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return fail(StageDeduping, &invoice.SchemaViolationError{Violations: []invoice.Violation{{
				Field: "products", Rule: "type", Param: "array", Message: "must be an array",
			}}})
		}
		products, err := invoice.NormalizeProducts(list)
		if err != nil {
			return fail(StageDeduping, err)
		}
		tree["products"] = products
	}

	slog.Debug("Extraction stage", "stage", StageSanitizing, "source", source, "candidate", index)
	sanitized, err := invoice.Sanitize(tree)
	if err != nil {
		return fail(StageSanitizing, err)
	}

	slog.Debug("Extraction stage", "stage", StageValidating, "source", source, "candidate", index)
	record, err := invoice.Validate(sanitized)
	if err != nil {
		return fail(StageValidating, err)
	}
	invoice.CheckConsistency(record, o.opts.Tolerance)

	if outcome.SerialNumber == "" && len(record.Invoices) > 0 {
		outcome.SerialNumber = record.Invoices[0].SerialNumber
	}
	outcome.Stage = StageDone
	outcome.Record = record
	return outcome
}

func candidateSource(source string, index int, serial string) string {
	label := fmt.Sprintf("candidate %d", index)
	if serial != "" {
		label = fmt.Sprintf("invoice %s", serial)
	}
	if source == "" {
		return label
	}
	return source + " " + label
}

func snippet(s string) string {
	return scanning.Truncate(s, 120)
}
