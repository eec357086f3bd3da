package grid

// PlacedCell is a cell with explicit 0-based anchor coordinates, the form most
// extraction engines report tables in.
type PlacedCell struct {
	Row     int
	Col     int
	Text    string
	RowSpan int
	ColSpan int
}

// Densify lays placed cells out as a dense RawGrid of the given size, filling
// every position no cell is anchored at with an empty placeholder. The result
// does not depend on the order of cells.
//
// Two cells anchored at the same position, or a column span that runs over
// another cell's anchor, fail with ErrConflictingSpan. Cells or spans outside
// the rows x cols area fail with ErrMalformedGrid.
func Densify(rows, cols int, cells []PlacedCell) (RawGrid, error) {
	const op = "Densify"

	if rows <= 0 || cols <= 0 {
		return RawGrid{}, malformed(op, -1, -1, "table size %dx%d is empty", rows, cols)
	}

	anchors := make([][]*PlacedCell, rows)
	for r := range anchors {
		anchors[r] = make([]*PlacedCell, cols)
	}

	for i := range cells {
		pc := cells[i]
		pc.RowSpan, pc.ColSpan = normalizeSpan(pc.RowSpan), normalizeSpan(pc.ColSpan)

		if pc.Row < 0 || pc.Row >= rows || pc.Col < 0 || pc.Col >= cols {
			return RawGrid{}, malformed(op, pc.Row, pc.Col, "cell lies outside the %dx%d table", rows, cols)
		}
		if pc.RowSpan < 1 || pc.ColSpan < 1 {
			return RawGrid{}, malformed(op, pc.Row, pc.Col, "span %dx%d is not positive", pc.RowSpan, pc.ColSpan)
		}
		if pc.Row+pc.RowSpan > rows || pc.Col+pc.ColSpan > cols {
			return RawGrid{}, malformed(op, pc.Row, pc.Col, "span %dx%d leaves the %dx%d table", pc.RowSpan, pc.ColSpan, rows, cols)
		}
		if anchors[pc.Row][pc.Col] != nil {
			return RawGrid{}, conflicting(op, pc.Row, pc.Col, "two cells anchored at the same position")
		}
		anchors[pc.Row][pc.Col] = &pc
	}

	raw := RawGrid{Rows: make([]RawRow, rows)}
	for r := 0; r < rows; r++ {
		row := make(RawRow, 0, cols)
		for c := 0; c < cols; {
			pc := anchors[r][c]
			if pc == nil {
				row = append(row, RawCell{RowSpan: 1, ColSpan: 1})
				c++
				continue
			}
			for k := c + 1; k < c+pc.ColSpan; k++ {
				if anchors[r][k] != nil {
					return RawGrid{}, conflicting(op, r, k, "cell is covered by the column span of cell (%d,%d)", r, c)
				}
			}
			row = append(row, RawCell{Text: pc.Text, RowSpan: pc.RowSpan, ColSpan: pc.ColSpan})
			c += pc.ColSpan
		}
		raw.Rows[r] = row
	}

	return raw, nil
}

// FromRecords builds a RawGrid of 1x1 cells from a text matrix, as read from a
// CSV file. Ragged records are kept as they are and rejected later by New.
func FromRecords(records [][]string) RawGrid {
	raw := RawGrid{Rows: make([]RawRow, len(records))}
	for r, rec := range records {
		row := make(RawRow, len(rec))
		for c, text := range rec {
			row[c] = RawCell{Text: text, RowSpan: 1, ColSpan: 1}
		}
		raw.Rows[r] = row
	}
	return raw
}
