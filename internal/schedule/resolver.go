// Package schedule reads a validated grid as a timetable: it maps the header,
// resolves spanned cells to (class, weekday, period) slots, merges the slots
// of every region into class schedules and summarizes the result.
package schedule

import (
	"fmt"
	"sort"
	"strings"

	"timetable/internal/decoder"
	"timetable/internal/grid"
	"timetable/pkg/models"
)

// Slot is the content of one (class, weekday, period) coordinate.
type Slot struct {
	Class   string
	Weekday models.Weekday
	Period  int
	Entries []decoder.Entry
}

// Resolve produces one slot per coordinate that carries text. A cell spanning
// several rows or columns fills every coordinate it covers. Positions claimed
// by two spanning cells, or by a spanning cell and a cell with different text,
// fail with a *SpanConflictError. A header or row-label cell whose span
// reaches into a lesson position fails with grid.ErrMalformedGrid. Slots are
// sorted by class, weekday and period.
func Resolve(g *grid.Grid, h HeaderMap, d *decoder.Decoder) ([]Slot, error) {
	var slots []Slot
	for _, row := range h.DataRows() {
		period := h.Periods[row]
		for _, col := range h.DataColumns() {
			column := h.Columns[col]

			if err := checkDataArea(g, h, row, col); err != nil {
				return nil, err
			}

			text, err := claim(g, row, col)
			if err != nil {
				err.Class, err.Weekday, err.Period = column.Class, column.Weekday, period
				return nil, err
			}

			entries := d.Decode(text)
			if len(entries) == 0 {
				continue
			}
			slots = append(slots, Slot{
				Class:   column.Class,
				Weekday: column.Weekday,
				Period:  period,
				Entries: entries,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.Period < b.Period
	})
	return slots, nil
}

// checkDataArea rejects text reaching (row, col) from a cell anchored in the
// header rows or the row-label columns.
func checkDataArea(g *grid.Grid, h HeaderMap, row, col int) error {
	for _, c := range g.Covering(row, col) {
		if c.Blank() || (c.Row >= h.HeaderRows && c.Col >= h.LabelCols) {
			continue
		}
		area := "header"
		if c.Row >= h.HeaderRows {
			area = "row label"
		}
		return &grid.GridError{
			Op:      "Resolve",
			Row:     c.Row,
			Col:     c.Col,
			Details: fmt.Sprintf("%s cell %q spans into lesson cell (%d,%d)", area, c.Text, row, col),
			Err:     grid.ErrMalformedGrid,
		}
	}
	return nil
}

// claim returns the text owning (row, col). Blank cells never claim a
// position. A 1x1 cell repeating the text of the span it sits in is a copy
// made by the extractor and is absorbed.
func claim(g *grid.Grid, row, col int) (string, *SpanConflictError) {
	var owners []grid.Cell
	for _, c := range g.Covering(row, col) {
		if !c.Blank() {
			owners = append(owners, c)
		}
	}
	switch len(owners) {
	case 0:
		return "", nil
	case 1:
		return owners[0].Text, nil
	}

	var span *grid.Cell
	for i := range owners {
		if !owners[i].Spans() {
			continue
		}
		if span != nil {
			return "", conflictAt(row, col, owners)
		}
		span = &owners[i]
	}
	if span == nil {
		return "", conflictAt(row, col, owners)
	}

	want := sameText(span.Text)
	for _, c := range owners {
		if sameText(c.Text) != want {
			return "", conflictAt(row, col, owners)
		}
	}
	return span.Text, nil
}

func sameText(s string) string {
	return strings.TrimSpace(decoder.Normalize(s))
}

func conflictAt(row, col int, owners []grid.Cell) *SpanConflictError {
	texts := make([]string, len(owners))
	for i, c := range owners {
		texts[i] = c.Text
	}
	return &SpanConflictError{Row: row, Col: col, Texts: texts}
}
