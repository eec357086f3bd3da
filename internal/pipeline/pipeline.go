// Package pipeline runs one document through extraction, header parsing,
// span resolution and schedule building, and aggregates the result.
//
// A run is all-or-nothing: the first error in any region stops the run and
// no partial timetable is returned.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"timetable/internal/decoder"
	"timetable/internal/extract"
	"timetable/internal/grid"
	"timetable/internal/logger"
	"timetable/internal/schedule"
	"timetable/pkg/models"
)

// State is a step of a pipeline run.
type State int

const (
	Idle State = iota
	Extracting
	Decoding
	Resolving
	Building
	Done
	Failed
)

var stateNames = [...]string{"idle", "extracting", "decoding", "resolving", "building", "done", "failed"}

func (s State) String() string {
	if s < Idle || s > Failed {
		return "unknown"
	}
	return stateNames[s]
}

// Pipeline turns documents into timetables. It holds no per-run state and
// may be shared between goroutines.
type Pipeline struct {
	extractor extract.Extractor
	decoder   *decoder.Decoder
}

// New creates a pipeline reading tables with extractor and cell text with d.
func New(extractor extract.Extractor, d *decoder.Decoder) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		decoder:   d,
	}
}

// run tracks the state of one Run call.
type run struct {
	log     zerolog.Logger
	state   State
	region  int
	page    int
	started time.Time
}

func newRun(ctx context.Context) *run {
	return &run{
		log:     logger.FromContext(ctx, "pipeline"),
		state:   Idle,
		region:  -1,
		started: time.Now(),
	}
}

func (r *run) enter(s State) {
	r.log.Debug().
		Stringer("from", r.state).
		Stringer("to", s).
		Int("region", r.region).
		Msg("Pipeline state transition")
	r.state = s
}

func (r *run) fail(err error) error {
	stage := r.state
	r.enter(Failed)
	r.log.Warn().Err(err).
		Stringer("stage", stage).
		Int("region", r.region).
		Int("page", r.page).
		Dur("elapsed", time.Since(r.started)).
		Msg("Pipeline failed")
	return &StageError{Stage: stage, Region: r.region, Page: r.page, Err: err}
}

// Run extracts every table region of doc and folds them, in source order,
// into one timetable. A document without tables yields an Empty timetable
// and no error.
func (p *Pipeline) Run(ctx context.Context, doc extract.Document) (*models.Timetable, error) {
	r := newRun(ctx)

	r.enter(Extracting)
	regions, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, r.fail(err)
	}
	r.log.Info().
		Int("regions", len(regions)).
		Dur("elapsed", time.Since(r.started)).
		Msg("Extraction completed")

	builder := schedule.NewBuilder()
	reports := make([]models.ParsingReport, 0, len(regions))

	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(extract.WrapExtractError("Pipeline.Run", err, "run canceled"))
		}
		r.region, r.page = i, region.Report.Page

		r.enter(Decoding)
		g, err := grid.New(region.Grid)
		if err != nil {
			return nil, r.fail(err)
		}
		header, err := schedule.ParseHeader(g, p.decoder)
		if err != nil {
			return nil, r.fail(err)
		}

		r.enter(Resolving)
		slots, err := schedule.Resolve(g, header, p.decoder)
		if err != nil {
			return nil, r.fail(err)
		}

		r.enter(Building)
		if err := builder.Add(i, slots); err != nil {
			return nil, r.fail(err)
		}

		report := region.Report
		report.Whitespace = roundPercent(g.Whitespace())
		reports = append(reports, report)

		r.log.Debug().
			Int("region", i).
			Int("page", report.Page).
			Int("rows", g.RowCount()).
			Int("cols", g.ColCount()).
			Int("slots", len(slots)).
			Float64("accuracy", report.Accuracy).
			Msg("Region folded")
	}

	t := schedule.Aggregate(builder.Build(), reports)

	r.enter(Done)
	r.log.Info().
		Int("classes", t.Statistics.TotalClasses).
		Int("periods", t.Statistics.TotalPeriods).
		Bool("empty", t.Empty).
		Dur("elapsed", time.Since(r.started)).
		Msg("Pipeline completed")
	return &t, nil
}

// ExtractTables runs extraction only and validates each region's grid. It
// serves diagnostics that need the tables as the engine saw them.
func (p *Pipeline) ExtractTables(ctx context.Context, doc extract.Document) ([]*grid.Grid, error) {
	r := newRun(ctx)

	r.enter(Extracting)
	regions, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, r.fail(err)
	}

	grids := make([]*grid.Grid, 0, len(regions))
	for i, region := range regions {
		r.region, r.page = i, region.Report.Page
		g, err := grid.New(region.Grid)
		if err != nil {
			return nil, r.fail(err)
		}
		grids = append(grids, g)
	}

	r.enter(Done)
	return grids, nil
}

// Decoder returns the cell decoder of the pipeline.
func (p *Pipeline) Decoder() *decoder.Decoder { return p.decoder }

func roundPercent(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
