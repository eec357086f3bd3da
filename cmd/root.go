package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"timetable/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Timetable - turn timetable documents into per-class weekly schedules",
	Long: `Timetable reads school timetables from PDF, XLSX or CSV documents and
turns the extracted tables into one weekly schedule per class.

Each cell is read as "course/teacher" entries; a trailing class-teacher
marker flags the homeroom teacher. Merged cells are expanded to every
period and day they cover.

Run "timetable serve" to expose the HTTP API, or use "parse" and "to-csv"
on local files.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
