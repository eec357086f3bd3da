package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"

	"timetable/internal/grid"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	values := map[string]string{
		"A1": "2024 秋季课程表",
		"A2": "节次", "B2": "7A-Mon", "C2": "7A-Tue",
		"A3": "1", "B3": "英语/陈", "C3": "数学/王",
		"A4": "2", "B4": "体育/王老师",
		"A5": "3", "C5": "美术/赵",
	}
	for axis, v := range values {
		require.NoError(t, f.SetCellValue(sheet, axis, v))
	}
	require.NoError(t, f.MergeCell(sheet, "A1", "C1"))
	require.NoError(t, f.MergeCell(sheet, "B4", "B5"))

	_, err := f.NewSheet("Notes")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "timetable.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestXLSXExtractor(t *testing.T) {
	path := writeWorkbook(t)

	regions, err := NewXLSXExtractor().Extract(context.Background(), Document{Path: path, Name: "timetable.xlsx"})
	require.NoError(t, err)
	require.Len(t, regions, 1, "empty sheets yield no region")

	r := regions[0]
	assert.Equal(t, 1, r.Report.Page)
	assert.Equal(t, 100.0, r.Report.Accuracy)
	assert.Equal(t, grid.RawGrid{Rows: []grid.RawRow{
		{cell("节次"), cell("7A-Mon"), cell("7A-Tue")},
		{cell("1"), cell("英语/陈"), cell("数学/王")},
		{cell("2"), {Text: "体育/王老师", RowSpan: 2, ColSpan: 1}, cell("")},
		{cell("3"), cell(""), cell("美术/赵")},
	}}, r.Grid)

	_, err = grid.New(r.Grid)
	assert.NoError(t, err)
}

func TestXLSXExtractor_NotAWorkbook(t *testing.T) {
	path := writeFile(t, "fake.xlsx", []byte("not a zip"))
	_, err := NewXLSXExtractor().Extract(context.Background(), Document{Path: path})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCSVExtractor(t *testing.T) {
	content := "ClassX-Monday,ClassX-Tuesday\n英语/陈小华*\n\n"

	tests := []struct {
		name string
		data []byte
	}{
		{"utf-8", []byte(content)},
		{"utf-8 with BOM", append([]byte{0xEF, 0xBB, 0xBF}, content...)},
	}

	gb, err := simplifiedchinese.GB18030.NewEncoder().String(content)
	require.NoError(t, err)
	tests = append(tests, struct {
		name string
		data []byte
	}{"gb18030", []byte(gb)})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "t.csv", tt.data)
			regions, err := NewCSVExtractor().Extract(context.Background(), Document{Path: path, Name: "t.csv"})
			require.NoError(t, err)
			require.Len(t, regions, 1)
			assert.Equal(t, grid.RawGrid{Rows: []grid.RawRow{
				{cell("ClassX-Monday"), cell("ClassX-Tuesday")},
				{cell("英语/陈小华*"), cell("")},
			}}, regions[0].Grid)
		})
	}
}

func TestCSVExtractor_Blank(t *testing.T) {
	path := writeFile(t, "blank.csv", []byte("\n\n"))
	regions, err := NewCSVExtractor().Extract(context.Background(), Document{Path: path})
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		head    string
		want    Format
		wantErr error
	}{
		{"pdf", "a.pdf", "%PDF-1.7", FormatPDF, nil},
		{"upper-case extension", "A.PDF", "%PDF-1.4", FormatPDF, nil},
		{"xlsx", "t.xlsx", "PK\x03\x04rest", FormatXLSX, nil},
		{"csv", "t.csv", "a,b", FormatCSV, nil},
		{"unknown extension", "a.docx", "PK\x03\x04", "", ErrUnsupportedFormat},
		{"no extension", "upload", "%PDF", "", ErrUnsupportedFormat},
		{"pdf without header", "a.pdf", "hello", "", ErrInvalidPDF},
		{"xlsx without zip header", "t.xlsx", "a,b", "", ErrInvalidWorkbook},
		{"binary csv", "t.csv", "%PDF-1.7", "", ErrUnsupportedFormat},
		{"empty", "a.pdf", "", "", ErrEmptyDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.file, []byte(tt.head))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stubExtractor struct {
	regions []Region
	called  bool
}

func (s *stubExtractor) Extract(context.Context, Document) ([]Region, error) {
	s.called = true
	return s.regions, nil
}

func TestRouter(t *testing.T) {
	pdf := &stubExtractor{regions: []Region{{}}}
	router := NewRouter(pdf)

	pdfPath := writeFile(t, "upload-1", []byte("%PDF-1.7\n..."))
	regions, err := router.Extract(context.Background(), Document{Path: pdfPath, Name: "timetable.pdf"})
	require.NoError(t, err)
	assert.True(t, pdf.called)
	assert.Len(t, regions, 1)

	csvPath := writeFile(t, "upload-2", []byte("A-Mon\n语文/李红\n"))
	regions, err = router.Extract(context.Background(), Document{Path: csvPath, Name: "timetable.csv"})
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Len(t, regions[0].Grid.Rows, 2)

	_, err = router.Extract(context.Background(), Document{Path: csvPath, Name: "timetable.txt"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	var extractErr *ExtractError
	assert.ErrorAs(t, err, &extractErr)
}

func TestWrapExtractError(t *testing.T) {
	assert.Nil(t, WrapExtractError("op", nil, ""))

	err := WrapExtractError("op", os.ErrNotExist, "opening")
	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrValidation)

	again := WrapExtractError("outer", err, "")
	assert.Same(t, err, again)

	gridErr := WrapExtractError("op", grid.ErrConflictingSpan, "")
	assert.ErrorIs(t, gridErr, grid.ErrConflictingSpan)
	assert.NotErrorIs(t, gridErr, ErrExtraction)
}
