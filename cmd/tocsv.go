package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"timetable/internal/config"
	"timetable/internal/grid"
	"timetable/internal/logger"
)

var toCSVCmd = &cobra.Command{
	Use:   "to-csv [file]",
	Short: "Print the tables of a document as CSV",
	Long: `Extract the tables of a PDF, XLSX or CSV document and print them as
CSV without interpreting any cell. Tables are separated by a blank line.

Use it to check what the extraction engine saw when a timetable does not
parse as expected.`,
	Example: `  timetable to-csv timetable.pdf -o tables.csv`,
	Args:    cobra.ExactArgs(1),
	RunE:    runToCSV,
}

func init() {
	rootCmd.AddCommand(toCSVCmd)

	toCSVCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	toCSVCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runToCSV(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("to-csv")

	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := config.Load()
	if err != nil {
		return err
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

	grids, err := p.ExtractTables(ctx, doc)
	if err != nil {
		return describeError(err)
	}
	if len(grids) == 0 {
		return fmt.Errorf("no table found in %s", doc.Name)
	}

	var buf bytes.Buffer
	for i, g := range grids {
		if i > 0 {
			buf.WriteString("\n")
		}
		if err := grid.WriteCSV(&buf, g); err != nil {
			return err
		}
	}

	var w io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	log.Info().
		Int("tables", len(grids)).
		Str("output_file", outputPath).
		Msg("Tables exported")
	return nil
}
