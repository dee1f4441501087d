// Package scanning talks to the external document understanding models and
// turns their free text replies into untyped JSON trees.
package scanning

import "context"

// Request is one prompt submitted to a model. Data is attached inline when
// set; otherwise the prompt is sent as plain text.
type Request struct {
	Prompt   string
	Data     []byte
	MIMEType string
}

// HasAttachment reports whether the request carries an inline document
func (r Request) HasAttachment() bool {
	return len(r.Data) > 0
}

// Scanner defines the interface for the external document understanding step
type Scanner interface {
	// Scan submits the request and returns the raw reply text
	Scan(ctx context.Context, req Request) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
