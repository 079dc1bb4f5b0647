// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dotcommander/codevisor/internal/domain"
)

// Analyzer is the engine behind the endpoints.
type Analyzer interface {
	Analyze(ctx context.Context, lang domain.Language, code string) (*domain.AnalysisResponse, error)
	ParsePython(ctx context.Context, code string) (*domain.ParseResponse, error)
}

type Options struct {
	Addr          string
	AllowedOrigin string
	MaxCodeSize   int64
	ReadTimeout   time.Duration
	ShutdownGrace time.Duration
}

func (o *Options) setDefaults() {
	if o.Addr == "" {
		o.Addr = ":5000"
	}
	if o.AllowedOrigin == "" {
		o.AllowedOrigin = "*"
	}
	if o.MaxCodeSize <= 0 {
		o.MaxCodeSize = 1 << 20
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 30 * time.Second
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 10 * time.Second
	}
}

type Server struct {
	engine   Analyzer
	cache    Cache
	metrics  *metrics
	validate *validator.Validate
	opts     Options
	started  time.Time
	logger   *slog.Logger
}

type Option func(*Server)

// WithCache stores results in c. The server closes it on shutdown.
func WithCache(c Cache) Option {
	return func(s *Server) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(engine Analyzer, opts Options, options ...Option) *Server {
	opts.setDefaults()
	s := &Server{
		engine:   engine,
		cache:    noCache{},
		metrics:  newMetrics(),
		validate: validator.New(),
		opts:     opts,
		started:  time.Now(),
		logger:   slog.Default().With("component", "server"),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate-flowchart", s.handleGenerateFlowchart)
	mux.HandleFunc("/parse-python", s.handleParsePython)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.handler())
	return s.logRequests(s.cors(mux))
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to the shutdown grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.ReadTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("analysis server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.closeCache()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "grace", s.opts.ShutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownGrace)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.closeCache()
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) closeCache() {
	if err := s.cache.Close(); err != nil {
		s.logger.Warn("closing cache", "error", err)
	}
}
