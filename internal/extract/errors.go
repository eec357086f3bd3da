package extract

import (
	"errors"
	"fmt"

	"timetable/internal/grid"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	// ErrExtraction is returned when an engine cannot read the document.
	ErrExtraction = errors.New("extraction failed")

	// ErrValidation is returned when the upload itself is unacceptable.
	ErrValidation = errors.New("invalid document")
)

// Specific failures, each wrapping one of the kinds above.
var (
	ErrUnsupportedFormat  = fmt.Errorf("%w: unsupported file format", ErrValidation)
	ErrInvalidPDF         = fmt.Errorf("%w: not a PDF document", ErrValidation)
	ErrInvalidWorkbook    = fmt.Errorf("%w: not an XLSX workbook", ErrValidation)
	ErrDocumentTooLarge   = fmt.Errorf("%w: document exceeds the engine size limit", ErrValidation)
	ErrEmptyDocument      = fmt.Errorf("%w: document is empty", ErrValidation)
	ErrTooManyPages       = fmt.Errorf("%w: too many pages for synchronous processing", ErrExtraction)
	ErrMissingCredentials = fmt.Errorf("%w: missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS", ErrExtraction)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid or insufficient Google Cloud credentials", ErrExtraction)
	ErrQuotaExceeded      = fmt.Errorf("%w: API quota exceeded", ErrExtraction)
	ErrProcessorNotFound  = fmt.Errorf("%w: Document AI processor not found", ErrExtraction)
	ErrEngineTimeout      = fmt.Errorf("%w: engine call timed out", ErrExtraction)
	ErrUnreadable         = fmt.Errorf("%w: document content could not be decoded", ErrExtraction)
)

// ExtractError wraps an extraction failure with the operation and page it
// happened in.
type ExtractError struct {
	// Op is the operation that failed (e.g., "TextLayer.Extract").
	Op string

	// Page is the 1-based page or sheet number; 0 when not applicable.
	Page int

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ExtractError) Error() string {
	prefix := "extract: " + e.Op
	if e.Page > 0 {
		prefix = fmt.Sprintf("%s: page %d", prefix, e.Page)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s failed: %s: %v", prefix, e.Details, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", prefix, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ExtractError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractError wraps err as an ExtractError if it isn't already one.
// Errors of no known kind are classified as ErrExtraction; grid errors keep
// their own kind.
func WrapExtractError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var extractErr *ExtractError
	if errors.As(err, &extractErr) {
		return err
	}

	if !knownKind(err) {
		err = fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return &ExtractError{Op: op, Err: err, Details: details}
}

func knownKind(err error) bool {
	for _, kind := range []error{ErrExtraction, ErrValidation, grid.ErrMalformedGrid, grid.ErrConflictingSpan} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func pageError(op string, page int, err error, details string) error {
	wrapped := WrapExtractError(op, err, details)
	var extractErr *ExtractError
	if errors.As(wrapped, &extractErr) && extractErr.Page == 0 {
		extractErr.Page = page
	}
	return wrapped
}
