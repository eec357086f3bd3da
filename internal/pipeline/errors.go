package pipeline

import (
	"errors"
	"fmt"

	"timetable/internal/extract"
	"timetable/internal/grid"
	"timetable/internal/schedule"
)

// Kind classifies a pipeline failure for the caller.
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindExtraction       Kind = "ExtractionError"
	KindMalformedGrid    Kind = "MalformedGridError"
	KindConflictingSpan  Kind = "ConflictingSpanError"
	KindScheduleConflict Kind = "ScheduleConflictError"
	KindInternal         Kind = "InternalError"
)

// KindOf returns the kind err belongs to, or KindInternal when it matches
// none of them.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, schedule.ErrScheduleConflict):
		return KindScheduleConflict
	case errors.Is(err, grid.ErrConflictingSpan):
		return KindConflictingSpan
	case errors.Is(err, grid.ErrMalformedGrid):
		return KindMalformedGrid
	case errors.Is(err, extract.ErrValidation):
		return KindValidation
	case errors.Is(err, extract.ErrExtraction):
		return KindExtraction
	default:
		return KindInternal
	}
}

// StageError reports the stage and table region a run failed in.
type StageError struct {
	// Stage is the state the run was in when it failed.
	Stage State

	// Region is the 0-based region index, -1 before any region was read.
	Region int

	// Page is the 1-based page of the region, 0 when unknown.
	Page int

	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Region < 0 {
		return fmt.Sprintf("pipeline: %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("pipeline: %s failed at region %d (page %d): %v", e.Stage, e.Region, e.Page, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *StageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
