package extract

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"timetable/internal/grid"
	"timetable/internal/logger"
)

// XLSXExtractor reads every non-empty worksheet of a workbook as one region.
// Merged ranges become spans anchored at their top-left cell. Cell values are
// read as displayed, so the accuracy is always 100.
type XLSXExtractor struct {
	log zerolog.Logger
}

// NewXLSXExtractor creates a workbook extractor.
func NewXLSXExtractor() *XLSXExtractor {
	return &XLSXExtractor{log: logger.WithComponent("xlsx")}
}

// Extract implements Extractor.
func (e *XLSXExtractor) Extract(ctx context.Context, doc Document) ([]Region, error) {
	const op = "XLSX.Extract"

	f, err := excelize.OpenFile(doc.Path)
	if err != nil {
		return nil, WrapExtractError(op, ErrInvalidWorkbook, err.Error())
	}
	defer f.Close()

	var regions []Region
	for i, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, WrapExtractError(op, err, "extraction canceled")
		}
		page := i + 1

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, pageError(op, page, err, "reading sheet "+sheet)
		}
		merges, err := f.GetMergeCells(sheet)
		if err != nil {
			return nil, pageError(op, page, err, "reading merged cells of "+sheet)
		}

		ranges := make([]mergeRange, 0, len(merges))
		for _, m := range merges {
			r, err := parseMerge(m.GetStartAxis(), m.GetEndAxis(), m.GetCellValue())
			if err != nil {
				return nil, pageError(op, page, err, "reading merged range of "+sheet)
			}
			ranges = append(ranges, r)
		}

		raw, ok, err := sheetGrid(rows, ranges)
		if err != nil {
			return nil, pageError(op, page, err, "laying out sheet "+sheet)
		}
		if !ok {
			e.log.Debug().Str("sheet", sheet).Msg("Skipping empty sheet")
			continue
		}
		regions = append(regions, newRegion(raw, 100, page))
	}
	return regions, nil
}

// mergeRange is a merged range in 0-based inclusive coordinates.
type mergeRange struct {
	row0, col0, row1, col1 int
	text                   string
}

func parseMerge(start, end, text string) (mergeRange, error) {
	c0, r0, err := excelize.CellNameToCoordinates(start)
	if err != nil {
		return mergeRange{}, err
	}
	c1, r1, err := excelize.CellNameToCoordinates(end)
	if err != nil {
		return mergeRange{}, err
	}
	return mergeRange{
		row0: min(r0, r1) - 1, col0: min(c0, c1) - 1,
		row1: max(r0, r1) - 1, col1: max(c0, c1) - 1,
		text: text,
	}, nil
}

// sheetGrid builds the grid of one sheet from the bounding box of its
// content. When the table is at least two cells wide, leading rows with a
// single filled cell are titles and are cut. Merges are clipped to the box.
func sheetGrid(rows [][]string, merges []mergeRange) (grid.RawGrid, bool, error) {
	type pos struct{ r, c int }
	cells := make(map[pos]grid.PlacedCell)
	covered := make(map[pos]bool)

	for _, m := range merges {
		for r := m.row0; r <= m.row1; r++ {
			for c := m.col0; c <= m.col1; c++ {
				covered[pos{r, c}] = true
			}
		}
		cells[pos{m.row0, m.col0}] = grid.PlacedCell{
			Row: m.row0, Col: m.col0, Text: m.text,
			RowSpan: m.row1 - m.row0 + 1, ColSpan: m.col1 - m.col0 + 1,
		}
	}
	for r, row := range rows {
		for c, text := range row {
			if strings.TrimSpace(text) == "" || covered[pos{r, c}] {
				continue
			}
			cells[pos{r, c}] = grid.PlacedCell{Row: r, Col: c, Text: text, RowSpan: 1, ColSpan: 1}
		}
	}

	top, left, bottom, right := -1, -1, -1, -1
	filled := make(map[int]int)
	for p, pc := range cells {
		if strings.TrimSpace(pc.Text) == "" {
			continue
		}
		filled[p.r]++
		if top < 0 || p.r < top {
			top = p.r
		}
		if left < 0 || p.c < left {
			left = p.c
		}
		bottom = max(bottom, p.r+pc.RowSpan-1)
		right = max(right, p.c+pc.ColSpan-1)
	}
	if top < 0 {
		return grid.RawGrid{}, false, nil
	}
	widest := 0
	for _, n := range filled {
		widest = max(widest, n)
	}
	for widest >= 2 && top < bottom && filled[top] < 2 {
		top++
	}

	var placed []grid.PlacedCell
	for _, pc := range cells {
		r0, c0 := max(pc.Row, top), max(pc.Col, left)
		r1, c1 := min(pc.Row+pc.RowSpan-1, bottom), min(pc.Col+pc.ColSpan-1, right)
		if r1 < r0 || c1 < c0 {
			continue
		}
		placed = append(placed, grid.PlacedCell{
			Row: r0 - top, Col: c0 - left, Text: pc.Text,
			RowSpan: r1 - r0 + 1, ColSpan: c1 - c0 + 1,
		})
	}

	raw, err := grid.Densify(bottom-top+1, right-left+1, placed)
	if err != nil {
		return grid.RawGrid{}, false, err
	}
	return raw, true, nil
}
