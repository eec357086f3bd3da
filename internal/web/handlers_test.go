package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetable/internal/decoder"
	"timetable/internal/extract"
	"timetable/internal/grid"
	"timetable/internal/pipeline"
	"timetable/pkg/models"
)

const scenarioCSV = "ClassX-Monday,ClassX-Tuesday\n英语/陈小华*,\n"

type fakeExtractor struct {
	regions []extract.Region
}

func (f fakeExtractor) Extract(context.Context, extract.Document) ([]extract.Region, error) {
	return f.regions, nil
}

func testServer(t *testing.T, ex extract.Extractor, opts Options) *Server {
	t.Helper()
	d, err := decoder.New(decoder.DefaultGrammar())
	require.NoError(t, err)
	if ex == nil {
		ex = extract.NewRouter(extract.NewTextLayerExtractor())
	}
	if opts.UploadDir == "" {
		opts.UploadDir = t.TempDir()
	}
	return NewServer(pipeline.New(ex, d), opts)
}

func uploadRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// assertNoUploads checks that every saved upload was removed.
func assertNoUploads(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "uploads are removed after the request")
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(t, nil, Options{})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleAPISpec(t *testing.T) {
	srv := testServer(t, nil, Options{})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/apispec.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeResponse(t, w)
	assert.Equal(t, "3.0.3", body["openapi"])

	paths := body["paths"].(map[string]any)
	tests := []struct {
		path   string
		method string
	}{
		{"/health", "get"},
		{"/api/timetable/parse", "post"},
		{"/api/csv/to-json", "post"},
		{"/api/pdf/to-csv", "post"},
	}
	for _, tt := range tests {
		require.Contains(t, paths, tt.path)
		assert.Contains(t, paths[tt.path], tt.method, tt.path)
	}
	assert.Len(t, paths, len(tests))

	schemas := body["components"].(map[string]any)["schemas"].(map[string]any)
	for _, name := range []string{"PeriodEntry", "ClassSchedule", "Statistics", "ParsingReport", "TimetableResponse", "ErrorResponse"} {
		assert.Contains(t, schemas, name)
	}
}

func TestHandleParse(t *testing.T) {
	dir := t.TempDir()
	srv := testServer(t, nil, Options{UploadDir: dir})

	w := serve(srv, uploadRequest(t, "/api/timetable/parse", "file", "timetable.csv", []byte(scenarioCSV)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Classes []models.ClassSchedule `json:"classes"`
		} `json:"data"`
		Statistics    models.Statistics     `json:"statistics"`
		ParsingReport models.ParsingReport  `json:"parsing_report"`
		Reports       []models.ParsingReport `json:"parsing_reports"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.True(t, resp.Success)
	assert.Equal(t, models.Statistics{TotalClasses: 1, TotalPeriods: 1}, resp.Statistics)
	assert.Equal(t, models.ParsingReport{Accuracy: 100, Whitespace: 25, Order: 1, Page: 1}, resp.ParsingReport)
	assert.Len(t, resp.Reports, 1)
	require.Len(t, resp.Data.Classes, 1)
	assert.Equal(t, "ClassX", resp.Data.Classes[0].ClassName)
	assert.Equal(t, []models.PeriodEntry{
		{Period: 1, Course: "英语", Teacher: "陈小华", IsClassTeacher: true},
	}, resp.Data.Classes[0].Schedule.Day(models.Monday))

	assertNoUploads(t, dir)
}

func TestHandleParse_ScheduleIncludesEveryWeekday(t *testing.T) {
	srv := testServer(t, nil, Options{})

	w := serve(srv, uploadRequest(t, "/api/timetable/parse", "file", "t.csv", []byte(scenarioCSV)))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeResponse(t, w)
	classes := body["data"].(map[string]any)["classes"].([]any)
	schedule := classes[0].(map[string]any)["schedule"].(map[string]any)
	for _, key := range []string{"monday", "tuesday", "wednesday", "thursday", "friday"} {
		assert.Contains(t, schedule, key)
	}
}

func TestHandleParse_EmptyDocument(t *testing.T) {
	srv := testServer(t, nil, Options{})

	w := serve(srv, uploadRequest(t, "/api/timetable/parse", "file", "blank.csv", []byte("\n\n")))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeResponse(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]any{"total_classes": 0.0, "total_periods": 0.0}, body["statistics"])
	assert.NotContains(t, body, "error")
}

func TestHandleParse_Failures(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		field    string
		filename string
		content  []byte
		opts     Options
		status   int
		kind     string
	}{
		{"missing file part", "/api/timetable/parse", "", "", nil, Options{}, http.StatusBadRequest, "ValidationError"},
		{"empty filename", "/api/timetable/parse", "file", "", []byte("x"), Options{}, http.StatusBadRequest, "ValidationError"},
		{"unsupported extension", "/api/timetable/parse", "file", "notes.txt", []byte("x"), Options{}, http.StatusBadRequest, "ValidationError"},
		{"empty upload", "/api/timetable/parse", "file", "t.csv", []byte{}, Options{}, http.StatusBadRequest, "ValidationError"},
		{"too large", "/api/timetable/parse", "file", "t.csv", []byte(scenarioCSV), Options{MaxUploadBytes: 8}, http.StatusBadRequest, "ValidationError"},
		{"pdf without header", "/api/timetable/parse", "file", "t.pdf", []byte("hello"), Options{}, http.StatusBadRequest, "ValidationError"},
		{"pdf to csv endpoint", "/api/csv/to-json", "file", "t.pdf", []byte("%PDF-1.7"), Options{}, http.StatusBadRequest, "ValidationError"},
		{"unknown weekday", "/api/csv/to-json", "file", "t.csv", []byte("A-Someday\n语文/李红\n"), Options{}, http.StatusUnprocessableEntity, "MalformedGridError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			opts := tt.opts
			opts.UploadDir = dir
			srv := testServer(t, nil, opts)

			w := serve(srv, uploadRequest(t, tt.path, tt.field, tt.filename, tt.content))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assertNoUploads(t, dir)

			body := decodeResponse(t, w)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])
			require.Contains(t, body, "error")
			assert.Equal(t, tt.kind, body["error"].(map[string]any)["kind"])
		})
	}
}

func TestHandleParse_ScheduleConflict(t *testing.T) {
	regions := []extract.Region{
		{Grid: grid.RawGrid{Rows: []grid.RawRow{{{Text: "A-Monday"}}, {{Text: "语文/李红"}}}}, Report: models.ParsingReport{Page: 1}},
		{Grid: grid.RawGrid{Rows: []grid.RawRow{{{Text: "A-Monday"}}, {{Text: "数学/王明"}}}}, Report: models.ParsingReport{Page: 2}},
	}
	dir := t.TempDir()
	srv := testServer(t, fakeExtractor{regions: regions}, Options{UploadDir: dir})

	w := serve(srv, uploadRequest(t, "/api/timetable/parse", "file", "t.pdf", []byte("%PDF-1.7")))
	assert.Equal(t, http.StatusConflict, w.Code)
	assertNoUploads(t, dir)

	body := decodeResponse(t, w)
	assert.Equal(t, map[string]any{
		"kind":   "ScheduleConflictError",
		"stage":  "building",
		"region": 1.0,
		"page":   2.0,
	}, body["error"])
}

func TestHandleParse_ConflictingSpan(t *testing.T) {
	regions := []extract.Region{
		{Grid: grid.RawGrid{Rows: []grid.RawRow{
			{{Text: "A-Monday"}},
			{{Text: "体育/王老师", RowSpan: 2}},
			{{Text: "数学/王明", RowSpan: 1}},
		}}, Report: models.ParsingReport{Page: 1}},
	}
	dir := t.TempDir()
	srv := testServer(t, fakeExtractor{regions: regions}, Options{UploadDir: dir})

	w := serve(srv, uploadRequest(t, "/api/timetable/parse", "file", "t.pdf", []byte("%PDF-1.7")))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assertNoUploads(t, dir)

	body := decodeResponse(t, w)
	assert.Equal(t, "ConflictingSpanError", body["error"].(map[string]any)["kind"])
	assert.Equal(t, "resolving", body["error"].(map[string]any)["stage"])
}

func TestHandleCSVToJSON(t *testing.T) {
	srv := testServer(t, nil, Options{})

	w := serve(srv, uploadRequest(t, "/api/csv/to-json", "file", "t.csv", []byte(scenarioCSV)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeResponse(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"total_classes": 1.0, "total_periods": 1.0}, body["statistics"])
}

func TestHandleToCSV(t *testing.T) {
	regions := []extract.Region{
		{Grid: grid.RawGrid{Rows: []grid.RawRow{
			{{Text: "节次"}, {Text: "A-Monday"}},
			{{Text: "1"}, {Text: "体育/王老师", RowSpan: 2}},
			{{Text: "2"}, {Text: ""}},
		}}},
		{Grid: grid.RawGrid{Rows: []grid.RawRow{{{Text: "x,y"}}}}},
	}
	srv := testServer(t, fakeExtractor{regions: regions}, Options{})

	w := serve(srv, uploadRequest(t, "/api/pdf/to-csv", "file", "week 1.pdf", []byte("%PDF-1.7")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="week 1_table.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "节次,A-Monday\n1,体育/王老师\n2,\n\n\"x,y\"\n", w.Body.String())
}

func TestHandleToCSV_NoTables(t *testing.T) {
	srv := testServer(t, fakeExtractor{}, Options{})

	w := serve(srv, uploadRequest(t, "/api/pdf/to-csv", "file", "t.pdf", []byte("%PDF-1.7")))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "ExtractionError", decodeResponse(t, w)["error"].(map[string]any)["kind"])
}

func TestThrottle(t *testing.T) {
	srv := testServer(t, nil, Options{RateLimit: 1e-9, RateBurst: 1})

	w := serve(srv, uploadRequest(t, "/api/csv/to-json", "file", "t.csv", []byte(scenarioCSV)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(srv, uploadRequest(t, "/api/csv/to-json", "file", "t.csv", []byte(scenarioCSV)))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health is never throttled")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(pipeline.KindValidation))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(pipeline.KindExtraction))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(pipeline.KindMalformedGrid))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(pipeline.KindConflictingSpan))
	assert.Equal(t, http.StatusConflict, statusFor(pipeline.KindScheduleConflict))
	assert.Equal(t, http.StatusInternalServerError, statusFor(pipeline.KindInternal))
}
