package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"timetable/internal/config"
	"timetable/internal/logger"
	"timetable/internal/sheets"
	"timetable/pkg/models"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a timetable document into per-class weekly schedules",
	Long: `Extract the tables of a PDF, XLSX or CSV timetable and print the
weekly schedule of every class as JSON.

The PDF engine is selected with EXTRACTOR (text, documentai or vision).
With --sheet-url the result is also published to a Google Sheet, one row
per lesson.`,
	Example: `  # Print the schedules of timetable.pdf
  timetable parse timetable.pdf

  # Save them to a file
  timetable parse timetable.xlsx -o schedules.json

  # Publish to Google Sheets
  timetable parse timetable.pdf --sheet-url "https://docs.google.com/spreadsheets/d/..."`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

// ParseOutput is the JSON document printed by the parse command
type ParseOutput struct {
	FileName       string                 `json:"file_name"`
	Empty          bool                   `json:"empty"`
	Classes        []models.ClassSchedule `json:"classes"`
	Statistics     models.Statistics      `json:"statistics"`
	ParsingReport  *models.ParsingReport  `json:"parsing_report,omitempty"`
	ParsingReports []models.ParsingReport `json:"parsing_reports"`
	Duration       string                 `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	parseCmd.Flags().String("sheet-url", "", "Google Sheet to publish to (default: GOOGLE_SHEET_URL)")
	parseCmd.Flags().String("worksheet", "", "Worksheet name (default: GOOGLE_SHEET_WORKSHEET)")
	parseCmd.Flags().Bool("publish", false, "Publish to the configured GOOGLE_SHEET_URL")
	parseCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse")

	outputPath, _ := cmd.Flags().GetString("output")
	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	publish, _ := cmd.Flags().GetBool("publish")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if sheetURL == "" && publish {
		sheetURL = cfg.GoogleSheetURL
		if sheetURL == "" {
			return fmt.Errorf("--publish needs GOOGLE_SHEET_URL or --sheet-url")
		}
	}
	if worksheet == "" {
		worksheet = cfg.GoogleSheetWorksheet
	}

	doc, err := inputDocument(args[0], log)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	p, closePipeline, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePipeline()

	start := time.Now()
	t, err := p.Run(ctx, doc)
	if err != nil {
		return describeError(err)
	}
	duration := time.Since(start)

	log.Info().
		Int("classes", t.Statistics.TotalClasses).
		Int("periods", t.Statistics.TotalPeriods).
		Int("tables", len(t.Reports)).
		Dur("duration", duration).
		Msg("Timetable parsed")

	out := ParseOutput{
		FileName:       doc.Name,
		Empty:          t.Empty,
		Classes:        t.Classes,
		Statistics:     t.Statistics,
		ParsingReports: t.Reports,
		Duration:       duration.String(),
	}
	if report, ok := t.Representative(); ok {
		out.ParsingReport = &report
	}
	if err := writeOutput(out, outputPath, log); err != nil {
		return err
	}

	if sheetURL == "" {
		return nil
	}
	if t.Empty {
		log.Warn().Msg("No table found, nothing to publish")
		return nil
	}
	svc, err := sheets.NewSheetsService(ctx, sheetURL, sheets.Credentials{
		File: cfg.GoogleCredentialsFile,
		JSON: cfg.GoogleCredentials,
	})
	if err != nil {
		return err
	}
	return svc.WriteTimetable(ctx, t, worksheet)
}

func writeOutput(out ParseOutput, outputPath string, log zerolog.Logger) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	data = append(data, '\n')

	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Schedules written to file")
	return nil
}
