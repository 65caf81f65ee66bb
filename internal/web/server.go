// Package web serves the browser surface: a static chat page, the JSON chat
// endpoint, a websocket variant of it, health checks and metrics.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/pipeline"
)

//go:embed static
var staticFiles embed.FS

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Processor answers one utterance.
type Processor interface {
	Process(ctx context.Context, utterance string) (*pipeline.Reply, error)
}

// Config configures the web server.
type Config struct {
	Addr           string
	MetricsEnabled bool
	Checks         map[string]observability.HealthCheckFunc // readiness checks by dependency name
}

// Server is the web surface.
type Server struct {
	cfg       Config
	processor Processor
	handler   http.Handler
	logger    zerolog.Logger
}

// NewServer registers every route.
func NewServer(cfg Config, processor Processor) *Server {
	s := &Server{
		cfg:       cfg,
		processor: processor,
		logger:    observability.Component("web"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/ws/chat", s.handleChatWS)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(cfg.Checks))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		s.logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	s.handler = mux
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.handler,
		// A /chat turn may spend the completion and synthesis budgets back to back.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", s.cfg.Addr).
			Str("endpoint", fmt.Sprintf("http://localhost%s/", s.cfg.Addr)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info().Msg("Server exited gracefully")
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	page, err := fs.ReadFile(staticFiles, "static/index.html")
	if err != nil {
		s.logger.Error().Err(err).Msg("Index page missing")
		http.Error(w, "index unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
