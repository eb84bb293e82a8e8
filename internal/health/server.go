// Package health provides the liveness, readiness and metrics HTTP server.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPort is used when Config.Port is empty.
const DefaultPort = "8080"

// DatabasePinger defines the interface for checking database connectivity.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// ModelState reports whether a model artifact is loaded.
type ModelState interface {
	Ready() bool
	Version() string
}

// HealthResponse represents the JSON response for health check endpoints.
type HealthResponse struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	Timestamp    string `json:"timestamp,omitempty"`
	Version      string `json:"version,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
}

// ReadyResponse represents the JSON response for readiness check endpoints.
type ReadyResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Checks   map[string]string `json:"checks,omitempty"`
	Duration string            `json:"duration,omitempty"`
}

// Server exposes /health, /live, /ready and optionally a metrics handler.
type Server struct {
	serviceName string
	version     string
	port        string
	server      *http.Server
	logger      *logrus.Logger
	db          DatabasePinger
	model       ModelState
	metricsPath string
	metrics     http.Handler
	mu          sync.RWMutex
	ready       bool
}

// Config holds the configuration for the health server.
type Config struct {
	ServiceName string
	Version     string
	Port        string
	Logger      *logrus.Logger
	DB          DatabasePinger
	Model       ModelState
	MetricsPath string
	Metrics     http.Handler
}

// NewServer creates a new health check server.
func NewServer(cfg Config) *Server {
	port := cfg.Port
	if port == "" {
		port = DefaultPort
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	return &Server{
		serviceName: cfg.ServiceName,
		version:     cfg.Version,
		port:        port,
		logger:      cfg.Logger,
		db:          cfg.DB,
		model:       cfg.Model,
		metricsPath: metricsPath,
		metrics:     cfg.Metrics,
	}
}

// SetReady marks the process as started. Readiness additionally requires a
// loaded model and a reachable database.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// IsReady returns whether the server was marked ready.
func (s *Server) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/live", s.handleLive)
	if s.metrics != nil {
		mux.Handle(s.metricsPath, s.metrics)
	}
	return mux
}

// Start binds the port, serves in the background and shuts down when ctx
// ends. A bind failure is returned to the caller.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("health server listen on %s: %w", s.port, err)
	}
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.logger != nil {
		fields := logrus.Fields{"addr": ln.Addr().String(), "service": s.serviceName}
		if s.metrics != nil {
			fields["metrics_path"] = s.metricsPath
		}
		s.logger.WithFields(fields).Info("Health server listening")
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.WithError(err).Error("Health server stopped unexpectedly")
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}

	if s.logger != nil {
		s.logger.Info("Health server shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) modelVersion() string {
	if s.model == nil {
		return ""
	}
	return s.model.Version()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Service:      s.serviceName,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Version:      s.version,
		ModelVersion: s.modelVersion(),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: s.serviceName,
	})
}

// handleReady reports 503 until the process is started, a model artifact
// is loaded and the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks := make(map[string]string)
	failed := []string{}

	if s.IsReady() {
		checks["service"] = "ok"
	} else {
		checks["service"] = "not_ready"
		failed = append(failed, "service")
	}

	if s.model != nil {
		if s.model.Ready() {
			checks["model"] = "ok"
		} else {
			checks["model"] = "no_artifact"
			failed = append(failed, "model")
		}
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = fmt.Sprintf("error: %v", err)
			failed = append(failed, "database")
		} else {
			checks["database"] = "ok"
		}
	}

	response := ReadyResponse{
		Status:   "ok",
		Service:  s.serviceName,
		Checks:   checks,
		Duration: time.Since(start).String(),
	}
	status := http.StatusOK
	if len(failed) > 0 {
		sort.Strings(failed)
		response.Status = "not_ready"
		status = http.StatusServiceUnavailable
		if s.logger != nil {
			s.logger.WithField("failed_checks", failed).Debug("Readiness check failed")
		}
	}
	writeJSON(w, status, response)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
