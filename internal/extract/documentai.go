package extract

import (
	"context"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"timetable/internal/grid"
	"timetable/internal/logger"
)

// MaxDocumentAIBytes is the inline document size limit for online processing (20MB).
const MaxDocumentAIBytes = 20 * 1024 * 1024

// DocumentAIExtractor reads tables with a Google Document AI form parser.
// The processor reports tables row by row with explicit row and column
// spans, and a layout confidence that becomes the region accuracy.
type DocumentAIExtractor struct {
	client *documentai.DocumentProcessorClient
	cfg    GoogleConfig
	log    zerolog.Logger
}

// NewDocumentAIExtractor creates a Document AI client for the processor in cfg.
func NewDocumentAIExtractor(ctx context.Context, cfg GoogleConfig) (*DocumentAIExtractor, error) {
	const op = "NewDocumentAIExtractor"

	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, WrapExtractError(op, ErrProcessorNotFound, "GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}

	opts := cfg.clientOptions()
	if cfg.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		if !cfg.HasCredentials() {
			return nil, WrapExtractError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapExtractError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}

	return &DocumentAIExtractor{
		client: client,
		cfg:    cfg,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// Extract implements Extractor.
func (p *DocumentAIExtractor) Extract(ctx context.Context, doc Document) ([]Region, error) {
	const op = "DocumentAI.Extract"

	data, err := readPDF(op, doc.Path, MaxDocumentAIBytes)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := p.cfg.withTimeout(ctx)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "application/pdf",
			},
		},
	}

	resp, err := p.client.ProcessDocument(callCtx, req)
	if err != nil {
		return nil, classifyAPIError(op, err, "Document AI")
	}
	if resp.Document == nil {
		return nil, WrapExtractError(op, ErrExtraction, "no document in response")
	}

	regions, err := documentTables(resp.Document)
	if err != nil {
		return nil, WrapExtractError(op, err, "reading tables")
	}

	p.log.Info().
		Int("pages", len(resp.Document.Pages)).
		Int("regions", len(regions)).
		Str("document", doc.Name).
		Msg("Document AI extraction completed")
	return regions, nil
}

// processorName constructs the full processor name for the Document AI API.
func (p *DocumentAIExtractor) processorName() string {
	if p.cfg.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			p.cfg.ProjectID, p.cfg.Location, p.cfg.ProcessorID, p.cfg.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.cfg.ProjectID, p.cfg.Location, p.cfg.ProcessorID)
}

// Close closes the underlying Document AI client.
func (p *DocumentAIExtractor) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// documentTables converts every table of doc into a region, in page order and
// then table order.
func documentTables(doc *documentaipb.Document) ([]Region, error) {
	text := []rune(doc.Text)

	var regions []Region
	for pi, page := range doc.Pages {
		number := int(page.PageNumber)
		if number <= 0 {
			number = pi + 1
		}

		for ti, table := range page.Tables {
			var rows [][]spanCell
			var confSum float64
			var confN int
			for _, tr := range append(append([]*documentaipb.Document_Page_Table_TableRow(nil), table.HeaderRows...), table.BodyRows...) {
				row := make([]spanCell, 0, len(tr.Cells))
				for _, tc := range tr.Cells {
					row = append(row, spanCell{
						Text:    anchorText(text, tc.Layout),
						RowSpan: int(tc.RowSpan),
						ColSpan: int(tc.ColSpan),
					})
					if tc.Layout != nil && tc.Layout.Confidence > 0 {
						confSum += float64(tc.Layout.Confidence)
						confN++
					}
				}
				rows = append(rows, row)
			}
			if len(rows) == 0 {
				continue
			}

			raw, err := placeRows(rows)
			if err != nil {
				return nil, pageError("DocumentAI.tables", number, err, fmt.Sprintf("table %d", ti+1))
			}

			accuracy := 100.0
			switch {
			case table.Layout != nil && table.Layout.Confidence > 0:
				accuracy = 100 * float64(table.Layout.Confidence)
			case confN > 0:
				accuracy = 100 * confSum / float64(confN)
			}

			region := newRegion(raw, accuracy, number)
			region.Report.Order = ti + 1
			regions = append(regions, region)
		}
	}
	return regions, nil
}

// anchorText resolves a layout's text anchor against the document text.
// Segment offsets count characters, not bytes.
func anchorText(text []rune, layout *documentaipb.Document_Page_Layout) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	var out []rune
	for _, seg := range layout.TextAnchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(text) {
			end = len(text)
		}
		if start < end {
			out = append(out, text[start:end]...)
		}
	}
	return string(out)
}

// spanCell is a table cell listed row by row, the way HTML tables and the
// Document AI API describe them: a cell's column is implied by the cells to
// its left and by row spans reaching down from earlier rows.
type spanCell struct {
	Text    string
	RowSpan int
	ColSpan int
}

// placeRows assigns each cell its column by skipping positions occupied by
// earlier row spans, then densifies the result.
func placeRows(rows [][]spanCell) (grid.RawGrid, error) {
	occupied := make(map[[2]int]bool)
	var placed []grid.PlacedCell
	cols := 0

	for r, row := range rows {
		c := 0
		for _, cell := range row {
			for occupied[[2]int{r, c}] {
				c++
			}
			rs, cs := max(cell.RowSpan, 1), max(cell.ColSpan, 1)
			for dr := 0; dr < rs; dr++ {
				for dc := 0; dc < cs; dc++ {
					occupied[[2]int{r + dr, c + dc}] = true
				}
			}
			placed = append(placed, grid.PlacedCell{Row: r, Col: c, Text: cell.Text, RowSpan: rs, ColSpan: cs})
			c += cs
		}
		cols = max(cols, c)
	}

	return grid.Densify(len(rows), cols, placed)
}
