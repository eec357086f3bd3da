// Package extract locates table regions in uploaded documents.
//
// Supported inputs:
//   - PDF through one of three engines: the local text layer (default),
//     Google Document AI form parsing or Google Cloud Vision text detection
//   - XLSX workbooks, one region per non-empty sheet
//   - CSV files (UTF-8 or GB18030), one region
//
// Every engine reports regions as grid.RawGrid values in source order (page,
// then position on the page) together with an accuracy estimate. Engines never
// interpret cell content.
package extract

import (
	"context"
	"fmt"

	"timetable/internal/grid"
	"timetable/pkg/models"
)

// Document is an uploaded file stored on local disk.
type Document struct {
	// Path is where the upload was saved.
	Path string

	// Name is the client-side file name. Its extension selects the format.
	Name string
}

// Region is one table found in a document.
type Region struct {
	Grid grid.RawGrid

	// Report carries page, order and accuracy. Whitespace is filled in once
	// the grid has been validated.
	Report models.ParsingReport
}

// Extractor finds the table regions of a document.
type Extractor interface {
	// Extract returns the regions in source order. A document without tables
	// yields no regions and no error.
	Extract(ctx context.Context, doc Document) ([]Region, error)
}

// PDF engine names accepted by NewPDFExtractor.
const (
	EngineText       = "text"
	EngineDocumentAI = "documentai"
	EngineVision     = "vision"
)

// NewPDFExtractor creates the PDF engine selected by name.
func NewPDFExtractor(ctx context.Context, engine string, cfg GoogleConfig) (Extractor, error) {
	switch engine {
	case "", EngineText:
		return NewTextLayerExtractor(), nil
	case EngineDocumentAI:
		return NewDocumentAIExtractor(ctx, cfg)
	case EngineVision:
		return NewVisionExtractor(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown extraction engine %q", engine)
	}
}
