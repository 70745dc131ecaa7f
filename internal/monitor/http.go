package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/config"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/metrics"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/recorder"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/version"
)

// StatusSource provides the live recorder snapshot for /status.
type StatusSource interface {
	Snapshot() recorder.Snapshot
}

// Server is the local HTTP observability endpoint.
type Server struct {
	server  *http.Server
	mux     *http.ServeMux
	logger  *slog.Logger
	metrics *metrics.Metrics
	status  StatusSource

	startTime time.Time
}

// NewServer creates the monitor server. status may be nil when no recording
// is active; gatherer serves /metrics and should be the registry the
// process metrics were registered with.
func NewServer(cfg config.MonitorConfig, logger *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer, status StatusSource) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger:    logger,
		metrics:   m,
		status:    status,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.withMetrics("/healthz", s.handleHealthz))
	mux.HandleFunc("/status", s.withMetrics("/status", s.handleStatus))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.mux = mux

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// withMetrics wraps a handler with request metrics collection.
func (s *Server) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, endpoint,
				fmt.Sprintf("%d", ww.statusCode), time.Since(startTime).Seconds())
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.logger.Info("Starting monitor endpoint", slog.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Monitor server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping monitor endpoint")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
		"service": map[string]interface{}{
			"name":    "catchup-voice",
			"version": version.Version,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.status == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "no active recording"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.status.Snapshot())
}
