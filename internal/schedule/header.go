package schedule

import (
	"fmt"
	"sort"
	"strings"

	"timetable/internal/decoder"
	"timetable/internal/grid"
	"timetable/pkg/models"
)

// Column is the (class, weekday) pair a data column belongs to.
type Column struct {
	Class   string
	Weekday models.Weekday
}

// HeaderMap maps grid columns to (class, weekday) pairs and grid rows to
// period numbers. Rows and columns missing from the maps carry no lessons.
type HeaderMap struct {
	// HeaderRows is the number of leading rows used by the header (1 or 2).
	HeaderRows int

	// LabelCols is the number of leading row-label columns.
	LabelCols int

	Columns map[int]Column
	Periods map[int]int
}

// DataColumns returns the mapped columns in ascending order.
func (h HeaderMap) DataColumns() []int {
	return sortedKeys(h.Columns)
}

// DataRows returns the mapped rows in ascending order.
func (h HeaderMap) DataRows() []int {
	return sortedKeys(h.Periods)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// ParseHeader derives the HeaderMap of g. Two header shapes are recognized:
//
//   - a single header row whose labels combine class and weekday, e.g.
//     "高一(1)班-星期一" or "Mon 7A";
//   - two header rows, class names on the first (usually spanning several
//     columns) and weekday labels on the second.
//
// Leading columns without a weekday are row labels. When the first one holds
// period labels those number the rows and rows with any other label are
// skipped; otherwise data rows are numbered from 1.
func ParseHeader(g *grid.Grid, d *decoder.Decoder) (HeaderMap, error) {
	h, err := parseSingleLevel(g, d)
	if err != nil {
		return HeaderMap{}, err
	}
	if h == nil {
		if h, err = parseTwoLevel(g, d); err != nil {
			return HeaderMap{}, err
		}
	}
	if h == nil {
		return HeaderMap{}, headerError(0, -1, "no weekday found in header")
	}

	seen := make(map[Column]int, len(h.Columns))
	for _, col := range h.DataColumns() {
		c := h.Columns[col]
		if prior, ok := seen[c]; ok {
			return HeaderMap{}, headerError(h.HeaderRows-1, col,
				"column repeats %s %s of column %d", c.Class, c.Weekday, prior)
		}
		seen[c] = col
	}

	if err := numberRows(g, d, h); err != nil {
		return HeaderMap{}, err
	}
	return *h, nil
}

func parseSingleLevel(g *grid.Grid, d *decoder.Decoder) (*HeaderMap, error) {
	first := -1
	for col := 0; col < g.ColCount(); col++ {
		if _, _, ok := d.SplitHeader(g.Text(0, col)); ok {
			first = col
			break
		}
	}
	if first < 0 {
		return nil, nil
	}

	h := &HeaderMap{HeaderRows: 1, LabelCols: first, Columns: make(map[int]Column)}
	for col := first; col < g.ColCount(); col++ {
		label := g.Text(0, col)
		class, day, ok := d.SplitHeader(label)
		if !ok {
			return nil, headerError(0, col, "cannot read class and weekday from %q", label)
		}
		h.Columns[col] = Column{Class: strings.TrimSpace(class), Weekday: day}
	}
	return h, nil
}

func parseTwoLevel(g *grid.Grid, d *decoder.Decoder) (*HeaderMap, error) {
	if g.RowCount() < 2 {
		return nil, nil
	}

	first := -1
	for col := 0; col < g.ColCount(); col++ {
		if _, ok := d.Weekday(g.Text(1, col)); ok {
			first = col
			break
		}
	}
	if first < 0 {
		return nil, nil
	}

	h := &HeaderMap{HeaderRows: 2, LabelCols: first, Columns: make(map[int]Column)}
	for col := first; col < g.ColCount(); col++ {
		label := g.Text(1, col)
		day, ok := d.Weekday(label)
		if !ok {
			return nil, headerError(1, col, "unknown weekday %q", label)
		}
		class := strings.TrimSpace(decoder.Normalize(g.Text(0, col)))
		if class == "" {
			return nil, headerError(0, col, "empty class name")
		}
		h.Columns[col] = Column{Class: class, Weekday: day}
	}
	return h, nil
}

func numberRows(g *grid.Grid, d *decoder.Decoder, h *HeaderMap) error {
	h.Periods = make(map[int]int)

	labelled := false
	if h.LabelCols > 0 {
		for row := h.HeaderRows; row < g.RowCount(); row++ {
			if _, ok := d.PeriodLabel(rowLabel(g, row)); ok {
				labelled = true
				break
			}
		}
	}

	if !labelled {
		for row := h.HeaderRows; row < g.RowCount(); row++ {
			h.Periods[row] = row - h.HeaderRows + 1
		}
		return nil
	}

	seen := make(map[int]int)
	for row := h.HeaderRows; row < g.RowCount(); row++ {
		period, ok := d.PeriodLabel(rowLabel(g, row))
		if !ok {
			continue
		}
		if period <= 0 {
			return headerError(row, 0, "period %d is not positive", period)
		}
		if prior, dup := seen[period]; dup {
			return headerError(row, 0, "period %d already labels row %d", period, prior)
		}
		seen[period] = row
		h.Periods[row] = period
	}
	return nil
}

// rowLabel returns the label of row in the first column. Rows covered by a
// taller label from above only hold a placeholder and read as unlabelled.
func rowLabel(g *grid.Grid, row int) string {
	c, _ := g.Cell(row, 0)
	return c.Text
}

func headerError(row, col int, format string, args ...any) error {
	return &grid.GridError{
		Op:      "ParseHeader",
		Row:     row,
		Col:     col,
		Details: fmt.Sprintf(format, args...),
		Err:     grid.ErrMalformedGrid,
	}
}
