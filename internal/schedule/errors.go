package schedule

import (
	"errors"
	"fmt"
	"strings"

	"timetable/internal/grid"
	"timetable/pkg/models"
)

// ErrScheduleConflict is returned when two table regions fill the same
// (class, weekday, period) slot with different lessons.
var ErrScheduleConflict = errors.New("schedule conflict")

// SpanConflictError reports cells of one region that claim the same slot.
type SpanConflictError struct {
	Class   string
	Weekday models.Weekday
	Period  int

	// Row and Col locate the contested grid position.
	Row int
	Col int

	// Texts holds the text of each competing cell.
	Texts []string
}

// Error implements the error interface.
func (e *SpanConflictError) Error() string {
	return fmt.Sprintf("schedule: %s %s period %d at cell (%d,%d) claimed by %d cells [%s]: %v",
		e.Class, e.Weekday, e.Period, e.Row, e.Col, len(e.Texts), strings.Join(e.Texts, " | "), grid.ErrConflictingSpan)
}

// Unwrap returns grid.ErrConflictingSpan.
func (e *SpanConflictError) Unwrap() error {
	return grid.ErrConflictingSpan
}

// ConflictError reports a slot filled differently by two regions.
type ConflictError struct {
	Class   string
	Weekday models.Weekday
	Period  int

	// Region is the region being added, PriorRegion the one that filled the
	// slot first. Both are 0-based source positions.
	Region      int
	PriorRegion int
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule: %s %s period %d: region %d disagrees with region %d: %v",
		e.Class, e.Weekday, e.Period, e.Region, e.PriorRegion, ErrScheduleConflict)
}

// Unwrap returns ErrScheduleConflict.
func (e *ConflictError) Unwrap() error {
	return ErrScheduleConflict
}
