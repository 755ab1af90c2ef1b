package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/croquetia-core/internal/broker"
	"github.com/nerrad567/croquetia-core/internal/device"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/config"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/logging"
	"github.com/nerrad567/croquetia-core/internal/journal"
	"github.com/nerrad567/croquetia-core/internal/stream"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Broker is the part of *broker.Broker the server uses.
type Broker interface {
	OnMessage(ctx context.Context, raw []byte)
	Devices() []device.Device
	Device(id int64) (device.Device, error)
	DeviceRefresh() (at time.Time, count uint64)
	Game() broker.GameStatus
	Stream() stream.Status
	Stats() broker.Stats
	Journal() journal.Repository
}

// HealthChecker is an optional component reported by /api/v1/health.
// The MQTT, InfluxDB and database clients satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.BrokerConfig
	Logger  *logging.Logger
	Broker  Broker
	Version string

	// Checks are keyed by component name ("mqtt", "influxdb", "database").
	Checks map[string]HealthChecker
}

// Server is the HTTP and WebSocket front of the broker.
type Server struct {
	cfg       config.BrokerConfig
	logger    *logging.Logger
	broker    Broker
	version   string
	checks    map[string]HealthChecker
	startTime time.Time

	hub *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a server. Nothing listens until Start.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If the logger or broker is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Broker == nil {
		return nil, fmt.Errorf("broker is required")
	}

	logger := deps.Logger.With("component", "api")
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       deps.Config,
		logger:    logger,
		broker:    deps.Broker,
		version:   deps.Version,
		checks:    deps.Checks,
		startTime: time.Now(),
		hub:       NewHub(logger),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start binds the listener and serves in the background. The bind happens
// before Start returns, so a port already in use is reported here.
//
// Parameters:
//   - ctx: Parent context; cancelling it closes producer connections
//
// Returns:
//   - error: ErrListen wrapping the bind failure
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListen, addr, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.ctx.Done():
		}
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("broker listening", "address", ln.Addr().String(), "ws_path", s.wsPath())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close disconnects producers and shuts the HTTP server down, waiting up
// to 10 seconds for in-flight requests.
func (s *Server) Close() error {
	s.cancel()
	s.hub.closeAll()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server is accepting connections.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.Addr() == "" {
		return fmt.Errorf("api server not started")
	}
	return nil
}

func (s *Server) wsPath() string {
	if s.cfg.WebSocket.Path == "" {
		return "/"
	}
	return s.cfg.WebSocket.Path
}
