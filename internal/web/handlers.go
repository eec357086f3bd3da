package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"timetable/internal/extract"
	"timetable/internal/grid"
	"timetable/internal/pipeline"
	"timetable/pkg/models"
)

// ErrNoTables is returned by the to-csv endpoint when the document holds no
// table to export.
var ErrNoTables = fmt.Errorf("%w: no table found in document", extract.ErrExtraction)

type response struct {
	Success        bool                   `json:"success"`
	Message        string                 `json:"message"`
	Data           *scheduleData          `json:"data,omitempty"`
	Statistics     *models.Statistics     `json:"statistics,omitempty"`
	ParsingReport  *models.ParsingReport  `json:"parsing_report,omitempty"`
	ParsingReports []models.ParsingReport `json:"parsing_reports,omitempty"`
	Error          *errorBody             `json:"error,omitempty"`
}

type scheduleData struct {
	Classes []models.ClassSchedule `json:"classes"`
}

type errorBody struct {
	Kind   pipeline.Kind `json:"kind"`
	Stage  string        `json:"stage,omitempty"`
	Region *int          `json:"region,omitempty"`
	Page   int           `json:"page,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	s.parseWith(w, r, s.pipeline)
}

func (s *Server) handleCSVToJSON(w http.ResponseWriter, r *http.Request) {
	s.parseWith(w, r, s.csvPipeline, extract.FormatCSV)
}

func (s *Server) parseWith(w http.ResponseWriter, r *http.Request, p *pipeline.Pipeline, allowed ...extract.Format) {
	log := zerolog.Ctx(r.Context())

	doc, cleanup, err := s.saveUpload(w, r, allowed...)
	defer cleanup()
	if err != nil {
		writeFailure(w, log, err)
		return
	}

	start := time.Now()
	t, err := p.Run(r.Context(), doc)
	if err != nil {
		writeFailure(w, log, err)
		return
	}
	log.Info().
		Str("filename", doc.Name).
		Dur("pipeline", time.Since(start)).
		Msg("Timetable parsed")

	writeJSON(w, http.StatusOK, timetableResponse(t))
}

func timetableResponse(t *models.Timetable) response {
	stats := t.Statistics
	if t.Empty {
		return response{
			Success:    false,
			Message:    "No table found in document",
			Statistics: &stats,
		}
	}

	resp := response{
		Success:        true,
		Message:        "Timetable parsed successfully",
		Data:           &scheduleData{Classes: t.Classes},
		Statistics:     &stats,
		ParsingReports: t.Reports,
	}
	if report, ok := t.Representative(); ok {
		resp.ParsingReport = &report
	}
	return resp
}

func (s *Server) handleToCSV(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	doc, cleanup, err := s.saveUpload(w, r)
	defer cleanup()
	if err != nil {
		writeFailure(w, log, err)
		return
	}

	grids, err := s.pipeline.ExtractTables(r.Context(), doc)
	if err != nil {
		writeFailure(w, log, err)
		return
	}
	if len(grids) == 0 {
		writeFailure(w, log, ErrNoTables)
		return
	}

	var buf bytes.Buffer
	for i, g := range grids {
		if i > 0 {
			buf.WriteString("\n")
		}
		if err := grid.WriteCSV(&buf, g); err != nil {
			writeFailure(w, log, err)
			return
		}
	}

	base := strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"_table.csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())

	log.Info().
		Str("filename", doc.Name).
		Int("tables", len(grids)).
		Msg("Tables exported as CSV")
}

// statusFor maps an error kind to the HTTP status reported to the client.
func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindValidation:
		return http.StatusBadRequest
	case pipeline.KindExtraction, pipeline.KindMalformedGrid, pipeline.KindConflictingSpan:
		return http.StatusUnprocessableEntity
	case pipeline.KindScheduleConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, log *zerolog.Logger, err error) {
	kind := pipeline.KindOf(err)
	body := &errorBody{Kind: kind}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		body.Stage = stageErr.Stage.String()
		if stageErr.Region >= 0 {
			region := stageErr.Region
			body.Region = &region
		}
		body.Page = stageErr.Page
	}

	status := statusFor(kind)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("kind", string(kind)).Int("status", status).Msg("Request failed")

	writeJSON(w, status, response{
		Success: false,
		Message: err.Error(),
		Error:   body,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
