package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"timetable/internal/grid"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExtractor reads a CSV file as one region of 1x1 cells. Files that are
// not valid UTF-8 are decoded as GB18030, the encoding spreadsheet software
// uses for Chinese exports.
type CSVExtractor struct{}

// NewCSVExtractor creates a CSV extractor.
func NewCSVExtractor() *CSVExtractor {
	return &CSVExtractor{}
}

// Extract implements Extractor.
func (e *CSVExtractor) Extract(ctx context.Context, doc Document) ([]Region, error) {
	const op = "CSV.Extract"

	data, err := readFile(doc.Path)
	if err != nil {
		return nil, WrapExtractError(op, err, "reading document")
	}

	records, err := ReadRecords(data)
	if err != nil {
		return nil, WrapExtractError(op, err, "parsing CSV")
	}
	if len(records) == 0 {
		return nil, nil
	}
	return []Region{newRegion(grid.FromRecords(records), 100, 1)}, nil
}

// ReadRecords parses CSV data into a rectangular text matrix. Short records
// are padded and trailing blank records dropped.
func ReadRecords(data []byte) ([][]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	for len(records) > 0 && blankRecord(records[len(records)-1]) {
		records = records[:len(records)-1]
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}
	for i, rec := range records {
		for len(rec) < width {
			rec = append(rec, "")
		}
		records[i] = rec
	}
	return records, nil
}

func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	if err != nil {
		return "", ErrUnreadable
	}
	return string(decoded), nil
}

func blankRecord(rec []string) bool {
	for _, field := range rec {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
