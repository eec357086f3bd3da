// Package web exposes the timetable pipeline over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"timetable/internal/extract"
	"timetable/internal/logger"
	"timetable/internal/pipeline"
)

// DefaultMaxUploadBytes is the upload size limit when none is configured.
const DefaultMaxUploadBytes = 16 << 20

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	Addr string

	// UploadDir receives uploads for the duration of a request. Empty means
	// the OS temp directory.
	UploadDir string

	// MaxUploadBytes limits the size of one uploaded file.
	MaxUploadBytes int64

	// RateLimit is the sustained number of uploads per second across all
	// clients, RateBurst the burst allowed above it. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Server serves the timetable API.
type Server struct {
	pipeline    *pipeline.Pipeline
	csvPipeline *pipeline.Pipeline
	opts        Options
	limiter     *rate.Limiter
	log         zerolog.Logger
}

// NewServer creates a server running uploads through p. CSV uploads to the
// csv-to-json endpoint use p's decoder with the CSV reader.
func NewServer(p *pipeline.Pipeline, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		pipeline:    p,
		csvPipeline: pipeline.New(extract.NewCSVExtractor(), p.Decoder()),
		opts:        opts,
		log:         logger.WithComponent("web"),
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))
	}
	return s
}

// Handler returns the routed API with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /apispec.json", s.handleAPISpec)
	mux.Handle("POST /api/timetable/parse", s.throttle(s.handleParse))
	mux.Handle("POST /api/pdf/to-csv", s.throttle(s.handleToCSV))
	mux.Handle("POST /api/csv/to-json", s.throttle(s.handleCSVToJSON))

	return s.withRequestLog(mux)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", s.opts.Addr).Msg("Serving timetable API")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) throttle(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, response{
				Success: false,
				Message: "too many requests, retry later",
			})
			return
		}
		next(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		reqLog := logger.WithRequestID(requestID)
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		reqLog.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request started")

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(reqLog.WithContext(r.Context())))

		reqLog.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request finished")
	})
}
