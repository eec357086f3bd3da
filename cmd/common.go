package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"timetable/internal/config"
	"timetable/internal/decoder"
	"timetable/internal/extract"
	"timetable/internal/pipeline"
)

// newPipeline wires the configured grammar and PDF engine into a pipeline.
// The returned close function releases engine connections.
func newPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pipeline.Pipeline, func(), error) {
	grammar, err := cfg.Grammar()
	if err != nil {
		return nil, nil, fmt.Errorf("loading cell grammar: %w", err)
	}
	dec, err := decoder.New(grammar)
	if err != nil {
		return nil, nil, fmt.Errorf("building cell decoder: %w", err)
	}

	pdf, err := extract.NewPDFExtractor(ctx, cfg.Extractor, cfg.GetGoogleConfig())
	if err != nil {
		return nil, nil, describeError(err)
	}
	router := extract.NewRouter(pdf)

	log.Debug().
		Str("extractor", cfg.Extractor).
		Str("grammar_preset", cfg.GrammarPreset).
		Str("grammar_file", cfg.GrammarFile).
		Msg("Pipeline ready")

	closeFn := func() {
		if err := router.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close extraction engine")
		}
	}
	return pipeline.New(router, dec), closeFn, nil
}

// commandContext returns a context canceled on SIGINT/SIGTERM and, when
// timeoutSecs is positive, after that many seconds.
func commandContext(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeoutSecs <= 0 {
		return ctx, stop
	}

	log.Debug().Int("timeout_secs", timeoutSecs).Msg("Command deadline set")
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	return ctx, func() {
		cancel()
		stop()
	}
}

// inputDocument validates a local input file the way uploads are validated.
func inputDocument(path string, log zerolog.Logger) (extract.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return extract.Document{}, fmt.Errorf("file not found: %s", path)
		}
		return extract.Document{}, fmt.Errorf("error accessing file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return extract.Document{}, fmt.Errorf("path is not a regular file: %s", path)
	}
	if _, ok := extract.FormatOf(path); !ok {
		return extract.Document{}, fmt.Errorf("unsupported file format %q: expected .pdf, .xlsx or .csv", filepath.Ext(path))
	}

	log.Info().
		Str("file", path).
		Int64("size", info.Size()).
		Msg("Processing document")
	return extract.Document{Path: path, Name: filepath.Base(path)}, nil
}

// describeError provides user-friendly messages for pipeline failures
func describeError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out, try increasing --timeout: %w", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, extract.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. GOOGLE_APPLICATION_CREDENTIALS with the path to a service account JSON file\n" +
			"2. GOOGLE_CREDENTIALS with the inline JSON credentials\n\n" +
			"or use EXTRACTOR=text to read the PDF text layer locally")
	case errors.Is(err, extract.ErrInvalidCredentials):
		return fmt.Errorf("Google Cloud authentication failed, check that the credentials are valid "+
			"and the service account may call the selected API: %w", err)
	}

	switch pipeline.KindOf(err) {
	case pipeline.KindMalformedGrid:
		return fmt.Errorf("the table layout is not supported: %w", err)
	case pipeline.KindConflictingSpan:
		return fmt.Errorf("merged cells overlap in the extracted table: %w", err)
	case pipeline.KindScheduleConflict:
		return fmt.Errorf("tables disagree about the same lesson slot: %w", err)
	default:
		return err
	}
}
