package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"timetable/internal/config"
	"timetable/internal/logger"
	"timetable/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the timetable HTTP API",
	Long: `Start the HTTP API:

  POST /api/timetable/parse   upload a PDF, XLSX or CSV timetable (field "file")
  POST /api/pdf/to-csv        download the extracted tables as CSV
  POST /api/csv/to-json       parse a CSV timetable
  GET  /health                liveness probe

Settings come from the environment (or .env); flags override HOST, PORT
and DEBUG.`,
	Example: `  # Serve on the configured address
  timetable serve

  # Serve locally on port 8080 with debug logging
  timetable serve --host 127.0.0.1 --port 8080 --debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Listen host (overrides HOST)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides PORT)")
	serveCmd.Flags().Bool("debug", false, "Enable debug logging (overrides DEBUG)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o700); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closePipeline, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePipeline()

	srv := web.NewServer(p, web.Options{
		Addr:           cfg.Addr(),
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	})

	log.Info().
		Str("addr", cfg.Addr()).
		Str("extractor", cfg.Extractor).
		Bool("debug", cfg.Debug).
		Int64("max_upload_bytes", cfg.MaxUploadBytes).
		Float64("rate_limit", cfg.RateLimit).
		Msg("Starting timetable server")

	return srv.ListenAndServe(ctx)
}
