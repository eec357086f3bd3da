package extract

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"timetable/internal/logger"
)

const (
	// MaxVisionFileBytes is the inline size limit of synchronous file
	// annotation (20MB).
	MaxVisionFileBytes = 20 * 1024 * 1024

	// MaxVisionPages is the page limit of synchronous file annotation.
	MaxVisionPages = 5
)

// VisionExtractor lays out tables from Google Cloud Vision document text
// detection. Vision reports paragraphs with bounding boxes but no table
// structure, so rows and columns are inferred from their positions and the
// mean paragraph confidence scales the accuracy.
type VisionExtractor struct {
	client *vision.ImageAnnotatorClient
	cfg    GoogleConfig
	log    zerolog.Logger
}

// NewVisionExtractor creates a Vision client from cfg.
func NewVisionExtractor(ctx context.Context, cfg GoogleConfig) (*VisionExtractor, error) {
	const op = "NewVisionExtractor"

	client, err := vision.NewImageAnnotatorClient(ctx, cfg.clientOptions()...)
	if err != nil {
		if !cfg.HasCredentials() {
			return nil, WrapExtractError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapExtractError(op, err, "failed to create Vision client")
	}

	return &VisionExtractor{
		client: client,
		cfg:    cfg,
		log:    logger.WithComponent("vision"),
	}, nil
}

// Extract implements Extractor.
func (v *VisionExtractor) Extract(ctx context.Context, doc Document) ([]Region, error) {
	const op = "Vision.Extract"

	data, err := readPDF(op, doc.Path, MaxVisionFileBytes)
	if err != nil {
		return nil, err
	}

	pages := make([]int32, MaxVisionPages)
	for i := range pages {
		pages[i] = int32(i + 1)
	}
	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  data,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				Pages: pages,
			},
		},
	}

	callCtx, cancel := v.cfg.withTimeout(ctx)
	defer cancel()

	resp, err := v.client.BatchAnnotateFiles(callCtx, req)
	if err != nil {
		return nil, classifyAPIError(op, err, "Vision API")
	}
	if len(resp.Responses) == 0 {
		return nil, WrapExtractError(op, ErrExtraction, "no response from Vision API")
	}

	regions, err := fileRegions(op, resp.Responses[0])
	if err != nil {
		return nil, err
	}

	v.log.Info().Int("regions", len(regions)).Str("document", doc.Name).Msg("Vision extraction completed")
	return regions, nil
}

// fileRegions lays out every page of one file annotation. Documents longer
// than the synchronous page limit are rejected rather than cut short.
func fileRegions(op string, fileResp *visionpb.AnnotateFileResponse) ([]Region, error) {
	if fileResp.Error != nil {
		return nil, WrapExtractError(op, ErrExtraction, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}
	if fileResp.TotalPages > MaxVisionPages {
		return nil, WrapExtractError(op, ErrTooManyPages,
			fmt.Sprintf("document has %d pages, limit is %d", fileResp.TotalPages, MaxVisionPages))
	}

	var regions []Region
	for i, page := range fileResp.Responses {
		number := i + 1
		if page.Error != nil {
			return nil, pageError(op, number, ErrExtraction, page.Error.Message)
		}

		region, ok, err := layoutPage(visionLayout(page.FullTextAnnotation, number))
		if err != nil {
			return nil, pageError(op, number, err, "laying out table")
		}
		if ok {
			regions = append(regions, region)
		}
	}
	return regions, nil
}

// visionLayout converts the paragraphs of one annotated page into fragments.
// Coordinates are scaled to the page size so that tolerances stay in points.
func visionLayout(annotation *visionpb.TextAnnotation, number int) PageLayout {
	layout := PageLayout{Number: number}
	if annotation == nil {
		return layout
	}

	for _, page := range annotation.Pages {
		w, h := float64(page.Width), float64(page.Height)
		if w <= 0 || h <= 0 {
			w, h = 1000, 1000
		}
		for _, block := range page.Blocks {
			for _, para := range block.Paragraphs {
				box, ok := polyBox(para.BoundingBox, w, h)
				if !ok {
					continue
				}
				text := paragraphText(para)
				if strings.TrimSpace(text) == "" {
					continue
				}
				layout.Fragments = append(layout.Fragments, Fragment{
					Box:        box,
					Text:       text,
					Confidence: float64(para.Confidence),
				})
			}
		}
	}
	return layout
}

// paragraphText rebuilds paragraph text from its symbols, keeping line breaks.
func paragraphText(para *visionpb.Paragraph) string {
	var b strings.Builder
	for _, word := range para.Words {
		for _, sym := range word.Symbols {
			b.WriteString(sym.Text)
			if sym.Property == nil || sym.Property.DetectedBreak == nil {
				continue
			}
			switch sym.Property.DetectedBreak.Type {
			case visionpb.TextAnnotation_DetectedBreak_SPACE, visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
				b.WriteByte(' ')
			case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
				b.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// polyBox returns the bounding rectangle of a polygon. PDF annotations use
// normalized vertices; image annotations use pixels.
func polyBox(poly *visionpb.BoundingPoly, w, h float64) (Box, bool) {
	if poly == nil {
		return Box{}, false
	}

	var xs, ys []float64
	if len(poly.NormalizedVertices) > 0 {
		for _, v := range poly.NormalizedVertices {
			xs = append(xs, float64(v.X)*w)
			ys = append(ys, float64(v.Y)*h)
		}
	} else {
		for _, v := range poly.Vertices {
			xs = append(xs, float64(v.X))
			ys = append(ys, float64(v.Y))
		}
	}
	if len(xs) == 0 {
		return Box{}, false
	}

	box := Box{X0: xs[0], Y0: ys[0], X1: xs[0], Y1: ys[0]}
	for i := range xs {
		box.X0, box.X1 = min(box.X0, xs[i]), max(box.X1, xs[i])
		box.Y0, box.Y1 = min(box.Y0, ys[i]), max(box.Y1, ys[i])
	}
	return box, true
}

// Close closes the underlying Vision client.
func (v *VisionExtractor) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
