package scanning

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is matched by every *TransportError
	ErrTransport = errors.New("model transport failure")
	// ErrInvalidOutput is matched by every *InvalidOutputError
	ErrInvalidOutput = errors.New("invalid model output")
)

// TransportError means the model could not be reached or did not answer in time
type TransportError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func transportError(provider string, err error) error {
	return &TransportError{Provider: provider, Err: err}
}

// InvalidOutputError means a reply could not be parsed as JSON after cleanup.
// Snippet holds the start of the cleaned reply.
type InvalidOutputError struct {
	Snippet string
	Err     error
}

// Error implements the error interface.
func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("invalid model output %q: %v", e.Snippet, e.Err)
}

// Unwrap returns the underlying error
func (e *InvalidOutputError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidOutput
func (e *InvalidOutputError) Is(target error) bool {
	return target == ErrInvalidOutput
}
