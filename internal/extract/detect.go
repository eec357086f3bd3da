package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format is a supported input format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")
)

// FormatOf returns the format named by a file extension.
func FormatOf(name string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pdf":
		return FormatPDF, true
	case "xlsx":
		return FormatXLSX, true
	case "csv":
		return FormatCSV, true
	default:
		return "", false
	}
}

// Detect confirms the format named by the file extension against the leading
// bytes of the content.
func Detect(name string, head []byte) (Format, error) {
	format, ok := FormatOf(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
	if len(head) == 0 {
		return "", ErrEmptyDocument
	}

	switch format {
	case FormatPDF:
		if !hasPDFMagic(head) {
			return "", ErrInvalidPDF
		}
	case FormatXLSX:
		if !bytes.HasPrefix(head, zipMagic) {
			return "", ErrInvalidWorkbook
		}
	case FormatCSV:
		if hasPDFMagic(head) || bytes.HasPrefix(head, zipMagic) {
			return "", fmt.Errorf("%w: binary content in a .csv file", ErrUnsupportedFormat)
		}
	}
	return format, nil
}

func hasPDFMagic(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	return data, nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

// Router dispatches a document to the extractor for its format.
type Router struct {
	PDF  Extractor
	XLSX Extractor
	CSV  Extractor
}

// NewRouter returns a router using pdf for PDF documents and the built-in
// readers for workbooks and CSV files.
func NewRouter(pdf Extractor) *Router {
	return &Router{
		PDF:  pdf,
		XLSX: NewXLSXExtractor(),
		CSV:  NewCSVExtractor(),
	}
}

// Extract implements Extractor.
func (r *Router) Extract(ctx context.Context, doc Document) ([]Region, error) {
	const op = "Router.Extract"

	head, err := readHead(doc.Path)
	if err != nil {
		return nil, WrapExtractError(op, err, "reading document")
	}

	name := doc.Name
	if name == "" {
		name = doc.Path
	}
	format, err := Detect(name, head)
	if err != nil {
		return nil, WrapExtractError(op, err, name)
	}

	var ex Extractor
	switch format {
	case FormatPDF:
		ex = r.PDF
	case FormatXLSX:
		ex = r.XLSX
	case FormatCSV:
		ex = r.CSV
	}
	if ex == nil {
		return nil, WrapExtractError(op, ErrUnsupportedFormat, fmt.Sprintf("no extractor for %s", format))
	}
	return ex.Extract(ctx, doc)
}

// Close closes the PDF engine when it holds a client connection.
func (r *Router) Close() error {
	if c, ok := r.PDF.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
