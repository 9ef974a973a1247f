// Package api serves health, metrics, the event stream and the /v1 board
// operations over HTTP.
package api

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/vestabridge/internal/auth"
	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/clock"
	"github.com/mattjoyce/vestabridge/internal/events"
	"github.com/mattjoyce/vestabridge/internal/scheduler"
	"github.com/mattjoyce/vestabridge/internal/service"
	"github.com/mattjoyce/vestabridge/internal/state"
)

// Service is the board side the API drives.
type Service interface {
	DispatchNow(ctx context.Context, cmd board.Command) bool
	ScheduleTimedDisplay(ctx context.Context, req service.TimedRequest) (string, error)
	CancelTimer(id string) bool
	ListTimers() iter.Seq[scheduler.TimerInfo]
	SaveSlot(ctx context.Context, slot string) error
	RestoreSlot(ctx context.Context, slot string, render *board.RenderParams) (bool, error)
	DeleteSlot(ctx context.Context, slot string) error
	ListSlots(ctx context.Context) ([]state.SlotSummary, error)
	Metrics() service.Metrics
}

var _ Service = (*service.Service)(nil)

// Readiness reports whether the message bus is connected. A nil Readiness
// is always ready.
type Readiness interface {
	IsConnected() bool
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the single admin bearer token.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
}

type Server struct {
	config Config
	svc    Service
	ready  Readiness
	events *events.Hub
	clock  clock.Clock
	logger *slog.Logger
	server *http.Server
}

func New(config Config, svc Service, ready Readiness, hub *events.Hub, c clock.Clock, logger *slog.Logger) *Server {
	if c == nil {
		c = clock.Real()
	}
	if hub == nil {
		hub = events.NewHub(0, c)
	}
	return &Server{
		config: config,
		svc:    svc,
		ready:  ready,
		events: hub,
		clock:  c,
		logger: logger,
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/ready", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/events", s.handleEvents)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		for _, rt := range routes {
			r.With(s.requireScopes(rt.Scope, "*")).Method(rt.Method, rt.Pattern, rt.handler(s))
		}
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", s.clock.Now().Sub(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
