package grid

import (
	"errors"
	"fmt"
)

// Structural errors raised while validating extracted tables.
var (
	// ErrMalformedGrid is returned when the rows of a table do not reconcile
	// to one consistent column layout, or a span leaves the table.
	ErrMalformedGrid = errors.New("malformed grid")

	// ErrConflictingSpan is returned when two cells claim the same coordinate.
	ErrConflictingSpan = errors.New("conflicting span")
)

// GridError wraps a structural error with the position it was detected at.
type GridError struct {
	// Op is the operation that failed (e.g., "New", "Densify").
	Op string

	// Row and Col locate the offending cell; -1 when not applicable.
	Row int
	Col int

	// Details describes the inconsistency.
	Details string

	// Err is ErrMalformedGrid or ErrConflictingSpan.
	Err error
}

// Error implements the error interface.
func (e *GridError) Error() string {
	switch {
	case e.Row >= 0 && e.Col >= 0:
		return fmt.Sprintf("grid: %s: cell (%d,%d): %s: %v", e.Op, e.Row, e.Col, e.Details, e.Err)
	case e.Row >= 0:
		return fmt.Sprintf("grid: %s: row %d: %s: %v", e.Op, e.Row, e.Details, e.Err)
	default:
		return fmt.Sprintf("grid: %s: %s: %v", e.Op, e.Details, e.Err)
	}
}

// Unwrap returns the underlying error for error unwrapping.
func (e *GridError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *GridError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func malformed(op string, row, col int, format string, args ...any) error {
	return &GridError{Op: op, Row: row, Col: col, Details: fmt.Sprintf(format, args...), Err: ErrMalformedGrid}
}

func conflicting(op string, row, col int, format string, args ...any) error {
	return &GridError{Op: op, Row: row, Col: col, Details: fmt.Sprintf(format, args...), Err: ErrConflictingSpan}
}
