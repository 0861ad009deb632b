package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/pixelpanel/internal/auth"
	"github.com/nerrad567/pixelpanel/internal/connection"
	"github.com/nerrad567/pixelpanel/internal/infrastructure/config"
	"github.com/nerrad567/pixelpanel/internal/infrastructure/logging"
	"github.com/nerrad567/pixelpanel/internal/panel"
	"github.com/nerrad567/pixelpanel/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceLink is the part of the connection manager the API drives.
type DeviceLink interface {
	URL() string
	IsConnected() bool
	Stats() connection.Stats
	Reconnect(ctx context.Context) error
	Disconnect() error
}

// LogHistory serves persisted device log lines, newest first.
type LogHistory interface {
	RecentLogs(ctx context.Context, limit int) ([]store.LogEntry, error)
}

// HealthChecker is implemented by components reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger
	Store  *store.Store
	Device DeviceLink
	Panel  *panel.Service

	// Auth protects mutating endpoints. Nil disables authentication.
	Auth *auth.Authenticator

	// History enables /logs?source=db. Optional.
	History LogHistory

	// Health lists optional components by name (database, mqtt, influxdb).
	Health map[string]HealthChecker

	// Metrics adds named sections to /metrics.
	Metrics map[string]func() any

	Version string
}

// Server is the HTTP API server for PixelPanel.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	store   *store.Store
	device  DeviceLink
	panel   *panel.Service
	auth    *auth.Authenticator
	history LogHistory
	health  map[string]HealthChecker
	metrics map[string]func() any
	version string
	started time.Time

	hub *Hub

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	detachHub func()
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Device == nil {
		return nil, fmt.Errorf("device link is required")
	}
	if deps.Panel == nil {
		return nil, fmt.Errorf("panel service is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		store:   deps.Store,
		device:  deps.Device,
		panel:   deps.Panel,
		auth:    deps.Auth,
		history: deps.History,
		health:  deps.Health,
		metrics: deps.Metrics,
		version: deps.Version,
		started: time.Now(),
		hub:     NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener, attaches the WebSocket hub to the store and
// serves in a background goroutine until Close.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)
	s.detachHub = s.hub.Attach(s.store)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       config.Seconds(s.cfg.Timeouts.Read),
		ReadHeaderTimeout: config.Seconds(s.cfg.Timeouts.Read),
		WriteTimeout:      config.Seconds(s.cfg.Timeouts.Write),
		IdleTimeout:       config.Seconds(s.cfg.Timeouts.Idle),
	}

	srv := s.server
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	detach := s.detachHub
	s.server, s.cancel, s.detachHub = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	// Stop broadcasts before the hub closes client channels.
	if detach != nil {
		detach()
	}
	if cancel != nil {
		cancel()
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancelShutdown()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
