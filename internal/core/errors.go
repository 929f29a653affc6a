package core

import (
	"errors"
	"fmt"
)

// Error kinds. Each is a distinct, recoverable condition: callers may retry
// with a different file, destination, or filter configuration.
var (
	// ErrSourceUnavailable means the roster file is missing, unreadable, or
	// cannot be decoded.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrDestinationUnwritable means the export target cannot be created or
	// overwritten.
	ErrDestinationUnwritable = errors.New("destination unwritable")

	// ErrEmptyResult means an export was attempted with zero records.
	ErrEmptyResult = errors.New("no data")
)

// ParseError reports a failure to open or decode a roster source.
// It matches ErrSourceUnavailable and the underlying cause with errors.Is.
type ParseError struct {
	Path string // May be empty for in-memory sources
	Line int    // Source line when known, 0 otherwise
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("%s: %s line %d: %v", ErrSourceUnavailable, e.Path, e.Line, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s: %v", ErrSourceUnavailable, e.Path, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d: %v", ErrSourceUnavailable, e.Line, e.Err)
	default:
		return fmt.Sprintf("%s: %v", ErrSourceUnavailable, e.Err)
	}
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// ExportError reports a failed spreadsheet export. Err is either
// ErrEmptyResult or the I/O failure, in which case the error also matches
// ErrDestinationUnwritable.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	if errors.Is(e.Err, ErrEmptyResult) {
		return "export: " + ErrEmptyResult.Error()
	}
	if e.Path == "" {
		return fmt.Sprintf("export: %s: %v", ErrDestinationUnwritable, e.Err)
	}
	return fmt.Sprintf("export: %s: %s: %v", ErrDestinationUnwritable, e.Path, e.Err)
}

func (e *ExportError) Unwrap() []error {
	if errors.Is(e.Err, ErrEmptyResult) {
		return []error{e.Err}
	}
	return []error{ErrDestinationUnwritable, e.Err}
}

func sourceError(path string, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		if pe.Path == "" {
			pe.Path = path
		}
		return pe
	}
	return &ParseError{Path: path, Err: err}
}

func destinationError(path string, err error) error {
	return &ExportError{Path: path, Err: err}
}
