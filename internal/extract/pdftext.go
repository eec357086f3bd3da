package extract

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"timetable/internal/logger"
)

// TextLayerExtractor reads tables from the embedded text layer of a PDF.
// Pages whose cells are drawn as rectangles are read cell by cell; other
// pages are laid out from the whitespace between text runs. Scanned pages
// have no text layer and yield no regions.
type TextLayerExtractor struct {
	log zerolog.Logger
}

// NewTextLayerExtractor creates a text layer extractor.
func NewTextLayerExtractor() *TextLayerExtractor {
	return &TextLayerExtractor{log: logger.WithComponent("pdf-text")}
}

// Extract implements Extractor.
func (e *TextLayerExtractor) Extract(ctx context.Context, doc Document) ([]Region, error) {
	const op = "TextLayer.Extract"

	file, reader, err := pdf.Open(doc.Path)
	if err != nil {
		return nil, WrapExtractError(op, ErrUnreadable, err.Error())
	}
	defer file.Close()

	pages := reader.NumPage()
	e.log.Debug().Int("pages", pages).Str("document", doc.Name).Msg("Reading PDF text layer")

	var regions []Region
	for n := 1; n <= pages; n++ {
		if err := ctx.Err(); err != nil {
			return nil, WrapExtractError(op, err, "extraction canceled")
		}

		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}

		layout, err := readTextLayer(page, n)
		if err != nil {
			return nil, pageError(op, n, err, "reading page content")
		}

		region, ok, err := layoutPage(layout)
		if err != nil {
			return nil, pageError(op, n, err, "laying out table")
		}
		if !ok {
			e.log.Debug().Int("page", n).Int("fragments", len(layout.Fragments)).Msg("No table on page")
			continue
		}

		e.log.Debug().
			Int("page", n).
			Int("rows", len(region.Grid.Rows)).
			Float64("accuracy", region.Report.Accuracy).
			Msg("Table found")
		regions = append(regions, region)
	}
	return regions, nil
}

// readTextLayer collects the glyphs and rectangles of one page. The pdf
// package panics on malformed content streams, so panics become errors here.
func readTextLayer(page pdf.Page, number int) (layout PageLayout, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	content := page.Content()

	glyphs := make([]glyph, len(content.Text))
	for i, t := range content.Text {
		glyphs[i] = glyph{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S}
	}

	layout = PageLayout{Number: number, Fragments: glyphRuns(glyphs)}
	for _, r := range content.Rect {
		// PDF space grows upwards; flip it so that Y grows down the page.
		layout.Rules = append(layout.Rules, Box{X0: r.Min.X, Y0: -r.Max.Y, X1: r.Max.X, Y1: -r.Min.Y})
	}
	return layout, nil
}

// glyph is one positioned string from a PDF content stream. Y is the baseline
// in PDF space.
type glyph struct {
	X, Y, W, Size float64
	S             string
}

// glyphRuns joins glyphs that sit on one baseline without a visible gap into
// text fragments.
func glyphRuns(glyphs []glyph) []Fragment {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := append([]glyph(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var lines [][]glyph
	for _, g := range sorted {
		if n := len(lines); n > 0 {
			head := lines[n-1][0]
			if head.Y-g.Y <= math.Max(head.Size, 1)/2 {
				lines[n-1] = append(lines[n-1], g)
				continue
			}
		}
		lines = append(lines, []glyph{g})
	}

	var frags []Fragment
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })

		var run []glyph
		flush := func() {
			if f, ok := runFragment(run); ok {
				frags = append(frags, f)
			}
			run = run[:0]
		}
		for _, g := range line {
			if n := len(run); n > 0 {
				prev := run[n-1]
				if g.X-(prev.X+prev.W) > math.Max(prev.Size, 1)/2 {
					flush()
				}
			}
			run = append(run, g)
		}
		flush()
	}
	return frags
}

func runFragment(run []glyph) (Fragment, bool) {
	if len(run) == 0 {
		return Fragment{}, false
	}
	var b strings.Builder
	size, base := 0.0, run[0].Y
	for _, g := range run {
		b.WriteString(g.S)
		size = math.Max(size, g.Size)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return Fragment{}, false
	}
	last := run[len(run)-1]
	return Fragment{
		Box:  Box{X0: run[0].X, Y0: -(base + size), X1: last.X + last.W, Y1: -base},
		Text: text,
	}, true
}
