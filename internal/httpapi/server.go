// Package httpapi serves the broker's operational endpoints: /healthz
// with the broker health as JSON, and /metrics in the Prometheus text
// format.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rmacdonaldsmith/meshbroker/pkg/broker"
)

// HealthSource reports broker health.
type HealthSource interface {
	GetHealth(ctx context.Context) (broker.HealthStatus, error)
	NodeID() string
}

// Config holds server configuration
type Config struct {
	Addr string
}

// Server represents the operational HTTP server
type Server struct {
	health     HealthSource
	metrics    http.Handler
	logger     *slog.Logger
	middleware *Middleware
	server     *http.Server

	mu  sync.Mutex
	lis net.Listener
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "httpapi")
		}
	}
}

// WithMetricsHandler sets the handler served at /metrics. Without it
// /metrics is not found.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a server for health. Call Start to listen.
func NewServer(health HealthSource, config Config, opts ...Option) *Server {
	s := &Server{
		health:  health,
		metrics: http.NotFoundHandler(),
		logger:  slog.Default().With("component", "httpapi"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.middleware = NewMiddleware(s.logger)

	s.server = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return s
}

// Handler returns the routes with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics)
	return s.middleware.Recovery(s.middleware.Logging(mux))
}

// Start listens on the configured address and serves in the background.
// It returns once the listener is open.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
	s.logger.Info("http server listening", "address", lis.Addr().String())
	return nil
}

// Addr returns the address being served, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz. An unhealthy broker answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.health.GetHealth(r.Context())
	if err != nil {
		writeError(w, "Failed to get health status", http.StatusInternalServerError)
		return
	}

	resp := HealthResponse{
		Healthy:             health.Healthy,
		NodeID:              s.health.NodeID(),
		EventLogHealthy:     health.EventLogHealthy,
		RoutingTableHealthy: health.RoutingTableHealthy,
		BridgeHealthy:       health.BridgeHealthy,
		Destinations:        health.Destinations,
		Subscriptions:       health.Subscriptions,
		SharedGroups:        health.SharedGroups,
		NamespacePolicies:   health.NamespacePolicies,
		Message:             health.Message,
	}

	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, resp, statusCode)
}
