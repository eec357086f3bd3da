package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetable/internal/grid"
)

func frag(text string, x0, y0, x1, y1 float64) Fragment {
	return Fragment{Box: Box{X0: x0, Y0: y0, X1: x1, Y1: y1}, Text: text}
}

func cell(text string) grid.RawCell {
	return grid.RawCell{Text: text, RowSpan: 1, ColSpan: 1}
}

func TestLayoutPage_RuledCells(t *testing.T) {
	page := PageLayout{
		Number: 2,
		Rules: []Box{
			{0, 0, 200, 40},  // table frame
			{0, 0, 100, 20},  // cells
			{0, 0, 100, 20},  // drawn twice
			{100, 0, 200, 20},
			{0, 20, 100, 40},
			{100, 20, 200, 40},
			{0, 19.8, 200, 20.2}, // ruling line
		},
		Fragments: []Fragment{
			frag("Timetable", 0, -30, 100, -20),
			frag("ClassX-Monday", 5, 5, 60, 15),
			frag("ClassX-Tuesday", 105, 5, 170, 15),
			frag("英语/陈小华*", 5, 25, 50, 35),
		},
	}

	region, ok, err := layoutPage(page)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, grid.RawGrid{Rows: []grid.RawRow{
		{cell("ClassX-Monday"), cell("ClassX-Tuesday")},
		{cell("英语/陈小华*"), cell("")},
	}}, region.Grid)
	assert.Equal(t, 100.0, region.Report.Accuracy)
	assert.Equal(t, 2, region.Report.Page)
	assert.Equal(t, 1, region.Report.Order)
}

func TestLayoutPage_RuledRowSpan(t *testing.T) {
	page := PageLayout{
		Number: 1,
		Rules: []Box{
			{0, 0, 100, 20}, {100, 0, 200, 20},
			{0, 20, 100, 60}, {100, 20, 200, 40},
			{100, 40, 200, 60},
		},
		Fragments: []Fragment{
			frag("A-Mon", 5, 5, 40, 15),
			frag("A-Tue", 105, 5, 140, 15),
			frag("体育/王老师", 10, 35, 60, 45),
			frag("x/y", 105, 25, 130, 35),
			frag("z/w", 105, 45, 130, 55),
		},
	}

	region, ok, err := layoutPage(page)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, region.Grid.Rows, 3)

	assert.Equal(t, grid.RawCell{Text: "体育/王老师", RowSpan: 2, ColSpan: 1}, region.Grid.Rows[1][0])
	assert.Equal(t, grid.RawRow{cell(""), cell("z/w")}, region.Grid.Rows[2])

	_, err = grid.New(region.Grid)
	assert.NoError(t, err)
}

func TestLayoutPage_Stream(t *testing.T) {
	page := PageLayout{
		Number: 1,
		Fragments: []Fragment{
			frag("2024 课程表", 50, 0, 150, 10),
			frag("节次", 0, 20, 20, 30),
			frag("7A-Mon", 50, 20, 80, 30),
			frag("7A-Tue", 120, 20, 150, 30),
			frag("1", 5, 40, 10, 50),
			frag("英语/陈", 50, 40, 85, 50),
			frag("数学/王", 120, 40, 150, 50),
			frag("2", 5, 60, 10, 70),
			frag("班会/李", 50, 60, 150, 70),
		},
	}

	region, ok, err := layoutPage(page)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, grid.RawGrid{Rows: []grid.RawRow{
		{cell("节次"), cell("7A-Mon"), cell("7A-Tue")},
		{cell("1"), cell("英语/陈"), cell("数学/王")},
		{cell("2"), {Text: "班会/李", RowSpan: 1, ColSpan: 2}},
	}}, region.Grid)
	assert.Equal(t, 87.5, region.Report.Accuracy)
}

func TestLayoutPage_NoTable(t *testing.T) {
	tests := []struct {
		name  string
		frags []Fragment
	}{
		{"no text", nil},
		{"blank text", []Fragment{frag("  ", 0, 0, 10, 10)}},
		{"single column of prose", []Fragment{
			frag("Dear parents,", 0, 0, 100, 10),
			frag("the timetable follows.", 0, 20, 100, 30),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := layoutPage(PageLayout{Number: 1, Fragments: tt.frags})
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestJoinFragments(t *testing.T) {
	got := joinFragments([]Fragment{
		frag("Lee", 20, 30, 35, 40),
		frag("陈小华", 0, 12, 30, 22),
		frag("英语", 0, 0, 20, 10),
		frag("Ms.", 0, 30, 15, 40),
	})
	assert.Equal(t, "英语\n陈小华\nMs. Lee", got)
	assert.Empty(t, joinFragments(nil))
}

func TestGlyphRuns(t *testing.T) {
	glyphs := []glyph{
		{X: 0, Y: 80, W: 6, Size: 10, S: "A"},
		{X: 10, Y: 100, W: 10, Size: 10, S: "语"},
		{X: 0, Y: 100, W: 10, Size: 10, S: "英"},
		{X: 20, Y: 100, W: 5, Size: 10, S: "/"},
		{X: 25, Y: 100.5, W: 10, Size: 10, S: "陈"},
		{X: 100, Y: 100, W: 10, Size: 10, S: "数"},
		{X: 110, Y: 100, W: 10, Size: 10, S: "学"},
		{X: 130, Y: 100, W: 3, Size: 10, S: " "},
	}

	frags := glyphRuns(glyphs)
	require.Len(t, frags, 3)
	assert.Equal(t, "英语/陈", frags[0].Text)
	assert.Equal(t, 0.0, frags[0].X0)
	assert.Equal(t, 35.0, frags[0].X1)
	assert.Equal(t, "数学", frags[1].Text)
	assert.Equal(t, "A", frags[2].Text)
	assert.Less(t, frags[0].Y0, frags[2].Y0, "higher baselines come first in top-down coordinates")
}

func TestClusterValues(t *testing.T) {
	assert.Equal(t, []float64{0, 100, 200}, clusterValues([]float64{200, 0, 100, 100, 0, 200}, 2))
	assert.Equal(t, []float64{0.5, 50}, clusterValues([]float64{0, 1, 50}, 2))
	assert.Nil(t, clusterValues(nil, 2))
}
