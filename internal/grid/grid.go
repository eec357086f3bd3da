// Package grid models one extracted table region: ordered rows of cells that
// carry raw text and row/column span declarations.
//
// A RawGrid uses a dense positional layout. Each row lists its cells from left
// to right and every cell consumes ColSpan columns of that row. Positions that
// are covered by a row span from an earlier row still appear in later rows,
// normally as empty 1x1 placeholders. New validates that layout into a Grid.
package grid

import "strings"

// RawCell is one cell as delivered by the extraction engine.
// A zero span means the engine did not declare one and is read as 1.
type RawCell struct {
	Text    string
	RowSpan int
	ColSpan int
}

// RawRow is an ordered sequence of cells.
type RawRow []RawCell

// RawGrid is an ordered sequence of rows.
type RawGrid struct {
	Rows []RawRow
}

// Cell is a validated cell anchored at (Row, Col), both 0-based.
type Cell struct {
	Row     int
	Col     int
	Text    string
	RowSpan int
	ColSpan int
}

// Blank reports whether the cell holds no visible text.
func (c Cell) Blank() bool {
	return strings.TrimSpace(c.Text) == ""
}

// Spans reports whether the cell covers more than its anchor position.
func (c Cell) Spans() bool {
	return c.RowSpan > 1 || c.ColSpan > 1
}

// Covers reports whether (row, col) lies inside the cell's span.
func (c Cell) Covers(row, col int) bool {
	return row >= c.Row && row < c.Row+c.RowSpan && col >= c.Col && col < c.Col+c.ColSpan
}

// Grid is a validated table region. It is immutable once built.
type Grid struct {
	rows  int
	cols  int
	cells []Cell
	// extent[r][c] indexes the cell of row r whose column extent contains c.
	extent [][]int
	// cover[r][c] lists every cell whose span contains (r, c).
	cover [][][]int
}

// New validates raw and builds a Grid. It fails with ErrMalformedGrid when a
// span is not positive, when a row span runs past the last row, or when the
// rows do not all add up to the same number of columns.
func New(raw RawGrid) (*Grid, error) {
	const op = "New"

	if len(raw.Rows) == 0 {
		return nil, malformed(op, -1, -1, "grid has no rows")
	}

	g := &Grid{rows: len(raw.Rows)}
	g.extent = make([][]int, g.rows)

	for r, row := range raw.Rows {
		if len(row) == 0 {
			return nil, malformed(op, r, -1, "row has no cells")
		}

		col := 0
		for _, rc := range row {
			rowSpan, colSpan := normalizeSpan(rc.RowSpan), normalizeSpan(rc.ColSpan)
			if rowSpan < 1 || colSpan < 1 {
				return nil, malformed(op, r, col, "span %dx%d is not positive", rc.RowSpan, rc.ColSpan)
			}
			if r+rowSpan > g.rows {
				return nil, malformed(op, r, col, "row span %d runs past the last row", rowSpan)
			}

			idx := len(g.cells)
			g.cells = append(g.cells, Cell{
				Row:     r,
				Col:     col,
				Text:    rc.Text,
				RowSpan: rowSpan,
				ColSpan: colSpan,
			})
			for i := 0; i < colSpan; i++ {
				g.extent[r] = append(g.extent[r], idx)
			}
			col += colSpan
		}

		if r == 0 {
			g.cols = col
		} else if col != g.cols {
			return nil, malformed(op, r, -1, "row spans %d columns, expected %d", col, g.cols)
		}
	}

	g.cover = make([][][]int, g.rows)
	for r := range g.cover {
		g.cover[r] = make([][]int, g.cols)
	}
	for idx, c := range g.cells {
		for r := c.Row; r < c.Row+c.RowSpan; r++ {
			for col := c.Col; col < c.Col+c.ColSpan; col++ {
				g.cover[r][col] = append(g.cover[r][col], idx)
			}
		}
	}

	return g, nil
}

func normalizeSpan(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// RowCount returns the number of rows.
func (g *Grid) RowCount() int { return g.rows }

// ColCount returns the number of columns declared by every row.
func (g *Grid) ColCount() int { return g.cols }

// Cell returns the cell of the given row whose column extent contains col.
// Coordinates are 0-based; ok is false when they fall outside the grid.
func (g *Grid) Cell(row, col int) (Cell, bool) {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return Cell{}, false
	}
	return g.cells[g.extent[row][col]], true
}

// Cells returns every cell in row-major anchor order.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, len(g.cells))
	copy(out, g.cells)
	return out
}

// Covering returns every cell whose span contains (row, col), in row-major
// anchor order. More than one cell means overlapping declarations.
func (g *Grid) Covering(row, col int) []Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return nil
	}
	idxs := g.cover[row][col]
	out := make([]Cell, len(idxs))
	for i, idx := range idxs {
		out[i] = g.cells[idx]
	}
	return out
}

// Text returns the visible text at (row, col): the text of the spanning cell
// that covers it, or of the cell anchored there.
func (g *Grid) Text(row, col int) string {
	for _, c := range g.Covering(row, col) {
		if !c.Blank() {
			return c.Text
		}
	}
	return ""
}

// Whitespace returns the share of empty positions in the grid as a
// percentage in [0, 100], reading spanned text into every covered position.
func (g *Grid) Whitespace() float64 {
	total := g.rows * g.cols
	if total == 0 {
		return 0
	}
	empty := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if strings.TrimSpace(g.Text(r, c)) == "" {
				empty++
			}
		}
	}
	return float64(empty) * 100 / float64(total)
}

// Records returns the grid as a rows x cols text matrix. Text of a spanning
// cell is kept at its anchor only.
func (g *Grid) Records() [][]string {
	out := make([][]string, g.rows)
	for r := range out {
		out[r] = make([]string, g.cols)
	}
	for _, c := range g.cells {
		out[c.Row][c.Col] = c.Text
	}
	return out
}
