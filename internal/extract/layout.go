package extract

import (
	"math"
	"sort"
	"strings"

	"timetable/internal/grid"
)

// Box is an axis-aligned rectangle in top-down page coordinates: Y grows
// towards the bottom of the page.
type Box struct {
	X0, Y0, X1, Y1 float64
}

func (b Box) width() float64  { return b.X1 - b.X0 }
func (b Box) height() float64 { return b.Y1 - b.Y0 }
func (b Box) area() float64   { return b.width() * b.height() }

func (b Box) center() (float64, float64) {
	return (b.X0 + b.X1) / 2, (b.Y0 + b.Y1) / 2
}

func (b Box) containsPoint(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}

func (b Box) containsBox(o Box, eps float64) bool {
	return o.X0 >= b.X0-eps && o.X1 <= b.X1+eps && o.Y0 >= b.Y0-eps && o.Y1 <= b.Y1+eps
}

// Fragment is a run of text with its bounding box.
type Fragment struct {
	Box
	Text string

	// Confidence is the engine's recognition confidence in [0, 1]; zero when
	// the engine does not report one.
	Confidence float64
}

// PageLayout is the positioned content of one page.
type PageLayout struct {
	Number    int
	Fragments []Fragment

	// Rules are rectangles drawn on the page. Rectangles big enough to hold
	// text are read as table cells.
	Rules []Box
}

const (
	// minCellSize separates cell rectangles from rectangles used to draw
	// ruling lines.
	minCellSize = 4.0

	// edgeTolerance is how far apart two rule edges may be and still be
	// treated as one grid line.
	edgeTolerance = 2.0
)

// layoutPage turns the content of one page into a table region. Pages with
// drawn cell rectangles are read cell by cell; otherwise rows and columns are
// inferred from the whitespace between text. ok is false when the page holds
// no table.
func layoutPage(p PageLayout) (region Region, ok bool, err error) {
	frags := make([]Fragment, 0, len(p.Fragments))
	for _, f := range p.Fragments {
		if strings.TrimSpace(f.Text) != "" && f.width() >= 0 && f.height() >= 0 {
			frags = append(frags, f)
		}
	}
	if len(frags) == 0 {
		return Region{}, false, nil
	}

	if cells := cellRects(p.Rules); len(cells) >= 2 {
		raw, accuracy, err := latticeGrid(cells, frags)
		if err != nil {
			return Region{}, false, err
		}
		if raw != nil {
			return newRegion(*raw, accuracy, p.Number), true, nil
		}
	}

	raw, accuracy := streamGrid(frags)
	if raw == nil {
		return Region{}, false, nil
	}
	return newRegion(*raw, accuracy, p.Number), true, nil
}

func newRegion(raw grid.RawGrid, accuracy float64, page int) Region {
	r := Region{Grid: raw}
	r.Report.Accuracy = math.Round(accuracy*100) / 100
	r.Report.Page = page
	r.Report.Order = 1
	return r
}

// cellRects keeps the innermost rectangles large enough to be cells. Frames
// drawn around a whole table or row contain other cells and are dropped, as
// are duplicates from fill-and-stroke drawing.
func cellRects(rules []Box) []Box {
	seen := make(map[[4]int]bool)
	var candidates []Box
	for _, r := range rules {
		if r.X1 < r.X0 {
			r.X0, r.X1 = r.X1, r.X0
		}
		if r.Y1 < r.Y0 {
			r.Y0, r.Y1 = r.Y1, r.Y0
		}
		if r.width() < minCellSize || r.height() < minCellSize {
			continue
		}
		key := [4]int{roundHalf(r.X0), roundHalf(r.Y0), roundHalf(r.X1), roundHalf(r.Y1)}
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, r)
	}

	var cells []Box
	for i, r := range candidates {
		frame := false
		for j, o := range candidates {
			if i != j && r.containsBox(o, edgeTolerance/2) {
				frame = true
				break
			}
		}
		if !frame {
			cells = append(cells, r)
		}
	}
	return cells
}

func roundHalf(v float64) int {
	return int(math.Round(v * 2))
}

// latticeGrid places each cell rectangle on the grid formed by all cell
// edges. Accuracy is the share of text fragments that lie entirely inside the
// cell they were assigned to. A nil grid means no text fell inside any cell.
func latticeGrid(cells []Box, frags []Fragment) (*grid.RawGrid, float64, error) {
	var xs, ys []float64
	for _, c := range cells {
		xs = append(xs, c.X0, c.X1)
		ys = append(ys, c.Y0, c.Y1)
	}
	xs, ys = clusterValues(xs, edgeTolerance), clusterValues(ys, edgeTolerance)
	if len(xs) < 2 || len(ys) < 2 {
		return nil, 0, nil
	}

	sort.Slice(cells, func(i, j int) bool { return cells[i].area() < cells[j].area() })

	contents := make([][]Fragment, len(cells))
	inside, clean := 0, 0
	for _, f := range frags {
		x, y := f.center()
		for i, c := range cells {
			if !c.containsPoint(x, y) {
				continue
			}
			contents[i] = append(contents[i], f)
			inside++
			if c.containsBox(f.Box, edgeTolerance) {
				clean++
			}
			break
		}
	}
	if inside == 0 {
		return nil, 0, nil
	}

	seen := make(map[[2]int]bool)
	placed := make([]grid.PlacedCell, 0, len(cells))
	for i, c := range cells {
		r0, r1 := nearest(ys, c.Y0), nearest(ys, c.Y1)
		c0, c1 := nearest(xs, c.X0), nearest(xs, c.X1)
		if r1 <= r0 || c1 <= c0 || seen[[2]int{r0, c0}] {
			continue
		}
		seen[[2]int{r0, c0}] = true
		placed = append(placed, grid.PlacedCell{
			Row:     r0,
			Col:     c0,
			Text:    joinFragments(contents[i]),
			RowSpan: r1 - r0,
			ColSpan: c1 - c0,
		})
	}

	raw, err := grid.Densify(len(ys)-1, len(xs)-1, placed)
	if err != nil {
		return nil, 0, err
	}
	return &raw, 100 * float64(clean) / float64(inside), nil
}

// streamGrid infers a table from text alone. Rows are bands of vertically
// overlapping fragments; columns are the horizontal extents shared by the
// fragments of the fullest rows. Leading rows with a single entry are titles
// and are dropped. A fragment that covers several columns becomes a column
// span.
func streamGrid(frags []Fragment) (*grid.RawGrid, float64) {
	bands := mergeIntervals(frags, func(f Fragment) (float64, float64) { return f.Y0, f.Y1 }, 0)

	rows := make([][]Fragment, len(bands))
	for _, f := range frags {
		_, y := f.center()
		i := locate(bands, y)
		rows[i] = append(rows[i], f)
	}
	for len(rows) > 0 && len(rows[0]) < 2 {
		rows = rows[1:]
	}
	if len(rows) < 2 {
		return nil, 0
	}

	widest := 0
	for _, row := range rows {
		widest = max(widest, len(row))
	}
	var tabular []Fragment
	var heights []float64
	for _, row := range rows {
		for _, f := range row {
			heights = append(heights, f.height())
		}
		if len(row) == widest {
			tabular = append(tabular, row...)
		}
	}
	gap := median(heights) / 2
	cols := mergeIntervals(tabular, func(f Fragment) (float64, float64) { return f.X0, f.X1 }, gap)
	if len(cols) < 2 {
		return nil, 0
	}

	type key struct{ row, col int }
	texts := make(map[key][]Fragment)
	spans := make(map[key]int)
	clean, total := 0, 0
	var confidence float64
	var rated int
	for r, row := range rows {
		for _, f := range row {
			c0, c1 := locate(cols, f.X0), locate(cols, f.X1)
			if c1 < c0 {
				c0, c1 = c1, c0
			}
			k := key{r, c0}
			texts[k] = append(texts[k], f)
			if n := c1 - c0 + 1; n > spans[k] {
				spans[k] = n
			}

			total++
			if c0 == c1 || len(row) == 1 {
				clean++
			}
			if f.Confidence > 0 {
				confidence += f.Confidence
				rated++
			}
		}
	}

	raw := grid.RawGrid{Rows: make([]grid.RawRow, len(rows))}
	for r := range rows {
		row := make(grid.RawRow, 0, len(cols))
		for c := 0; c < len(cols); {
			k := key{r, c}
			span := 1
			if frs, ok := texts[k]; ok {
				span = spans[k]
				if c+span > len(cols) {
					span = len(cols) - c
				}
				for s := c + 1; s < c+span; s++ {
					if more, ok := texts[key{r, s}]; ok {
						frs = append(frs, more...)
					}
				}
				row = append(row, grid.RawCell{Text: joinFragments(frs), RowSpan: 1, ColSpan: span})
			} else {
				row = append(row, grid.RawCell{RowSpan: 1, ColSpan: 1})
			}
			c += span
		}
		raw.Rows[r] = row
	}

	accuracy := 100 * float64(clean) / float64(total)
	if rated > 0 {
		accuracy *= confidence / float64(rated)
	}
	return &raw, accuracy
}

// joinFragments renders the fragments of one cell: lines top to bottom joined
// by "\n", fragments on a line left to right. Neighbours separated by a
// visible gap get a space between them.
func joinFragments(frags []Fragment) string {
	if len(frags) == 0 {
		return ""
	}
	lines := mergeIntervals(frags, func(f Fragment) (float64, float64) { return f.Y0, f.Y1 }, 0)
	byLine := make([][]Fragment, len(lines))
	for _, f := range frags {
		_, y := f.center()
		i := locate(lines, y)
		byLine[i] = append(byLine[i], f)
	}

	var out []string
	for _, line := range byLine {
		if len(line) == 0 {
			continue
		}
		sort.SliceStable(line, func(i, j int) bool { return line[i].X0 < line[j].X0 })
		var b strings.Builder
		for i, f := range line {
			if i > 0 && f.X0-line[i-1].X1 > f.height()/4 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(f.Text))
		}
		out = append(out, b.String())
	}
	return strings.Join(out, "\n")
}

type interval struct{ lo, hi float64 }

// mergeIntervals projects fragments onto one axis and merges extents that
// overlap or lie closer than gap. The result is sorted.
func mergeIntervals(frags []Fragment, extent func(Fragment) (float64, float64), gap float64) []interval {
	ivs := make([]interval, 0, len(frags))
	for _, f := range frags {
		lo, hi := extent(f)
		ivs = append(ivs, interval{lo, hi})
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].lo < ivs[j].lo })

	var merged []interval
	for _, iv := range ivs {
		if n := len(merged); n > 0 && iv.lo <= merged[n-1].hi+gap {
			merged[n-1].hi = math.Max(merged[n-1].hi, iv.hi)
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// locate returns the interval containing v, or the nearest one.
func locate(ivs []interval, v float64) int {
	best, dist := 0, math.Inf(1)
	for i, iv := range ivs {
		if v >= iv.lo && v <= iv.hi {
			return i
		}
		d := math.Min(math.Abs(v-iv.lo), math.Abs(v-iv.hi))
		if d < dist {
			best, dist = i, d
		}
	}
	return best
}

// clusterValues sorts values and collapses those within tolerance of the
// running cluster center.
func clusterValues(values []float64, tolerance float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	clustered := []float64{sorted[0]}
	for _, v := range sorted[1:] {
		last := &clustered[len(clustered)-1]
		if v-*last > tolerance {
			clustered = append(clustered, v)
		} else {
			*last = (*last + v) / 2
		}
	}
	return clustered
}

// nearest returns the index of the value closest to v.
func nearest(values []float64, v float64) int {
	best, dist := 0, math.Inf(1)
	for i, x := range values {
		if d := math.Abs(x - v); d < dist {
			best, dist = i, d
		}
	}
	return best
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}
