// Package api provides the local status HTTP server for volumio-hid.
//
// It exposes the daemon's health, the current player session state, task
// statuses and the scan history to local monitoring. The server is
// read-only and binds to loopback by default.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edmw/volumio-hid/internal/history"
	"github.com/edmw/volumio-hid/internal/infrastructure/config"
	"github.com/edmw/volumio-hid/internal/infrastructure/logging"
	"github.com/edmw/volumio-hid/internal/supervisor"
	"github.com/edmw/volumio-hid/internal/volumio"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Player reports the state of the Volumio session.
type Player interface {
	IsConnected() bool
	State() volumio.State
}

// ScanLister reads the scan history.
type ScanLister interface {
	List(ctx context.Context, filter history.Filter) (*history.ListResult, error)
}

// TaskReporter reports the status of supervised tasks.
type TaskReporter interface {
	Stats() []supervisor.TaskStats
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Version    string
	DevicePath string

	// Player is optional; the session section is omitted when nil.
	Player Player

	// Scans is optional; /api/scans returns 404 when history is disabled.
	Scans ScanLister

	// Tasks is optional; the tasks section is omitted when nil.
	Tasks TaskReporter
}

// Server is the local status HTTP server.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	version    string
	devicePath string
	player     Player
	scans      ScanLister
	tasks      TaskReporter
	server     *http.Server
}

// New creates a new status server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger) and optional sources
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		version:    deps.Version,
		devicePath: deps.DevicePath,
		player:     deps.Player,
		scans:      deps.Scans,
		tasks:      deps.Tasks,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; stop it with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	s.logger.Info("status server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the status server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}

// HealthCheck verifies the status server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("status server not started")
	}

	return nil
}
