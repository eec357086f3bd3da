package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"timetable/internal/logger"
	"timetable/pkg/models"
)

// headers of the published sheet, one row per lesson.
var headers = []interface{}{
	"Class", "Weekday", "Period", "Course", "Teacher", "Class teacher", "Published",
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service publishes parsed timetables to a Google Sheet
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// Credentials selects the service account used for the Sheets API. File
// takes precedence over inline JSON.
type Credentials struct {
	File string
	JSON string
}

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string, creds Credentials) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	var key []byte
	switch {
	case creds.File != "":
		key, err = os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	case creds.JSON != "":
		key = []byte(creds.JSON)
	default:
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(key, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// WriteTimetable replaces the content of sheetName with one row per lesson
// of t. The sheet is created when missing.
func (s *Service) WriteTimetable(ctx context.Context, t *models.Timetable, sheetName string) error {
	const op = "WriteTimetable"

	values := timetableRows(t, time.Now())

	s.log.Info().
		Str("sheet", sheetName).
		Int("rows", len(values)).
		Msg("Writing timetable to Google Sheet")

	sheetID, err := s.ensureSheet(ctx, sheetName)
	if err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	_, err = s.sheetsService.Spreadsheets.Values.Clear(
		s.spreadsheetID,
		sheetName+"!A:G",
		&sheets.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to clear sheet: %w", op, err)
	}

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		sheetName+"!A1",
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to write values to sheet: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote timetable to Google Sheet")

	return nil
}

// timetableRows flattens t into sheet rows, headers first. Classes keep
// their order, days run Monday to Friday and lessons by period.
func timetableRows(t *models.Timetable, publishedAt time.Time) [][]interface{} {
	stamp := publishedAt.Format(time.DateTime)
	rows := [][]interface{}{headers}
	for _, class := range t.Classes {
		for _, day := range models.Weekdays {
			for _, e := range class.Schedule.Day(day) {
				rows = append(rows, []interface{}{
					class.ClassName,
					day.String(),
					e.Period,
					e.Course,
					e.Teacher,
					e.IsClassTeacher,
					stamp,
				})
			}
		}
	}
	return rows
}

// ensureSheet returns the ID of sheetName, adding the sheet when missing
func (s *Service) ensureSheet(ctx context.Context, sheetName string) (int64, error) {
	const op = "ensureSheet"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, nil
		}
	}

	s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheetName},
			}},
		},
	}
	resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to create sheet: %w", op, err)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// formatHeaders makes the header row bold and applies basic formatting
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	columns := int64(len(headers))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{
							Red:   0.9,
							Green: 0.9,
							Blue:  0.9,
						},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}

	return nil
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	return resp.Values, nil
}
