package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

// ServerConfig holds configuration for the relay server wrapper. Fields are
// populated from the environment by ServerConfigFromEnv.
type ServerConfig struct {
	// Host is the host to bind to (default: "")
	Host string `env:"HOST"`

	// Port is the port to listen on (default: 8080)
	Port string `env:"PORT" envDefault:"8080"`

	// ShutdownTimeout is the timeout for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// PrintRoutes prints the mounted route table at startup
	PrintRoutes bool `env:"PRINT_ROUTES" envDefault:"false"`
}

// ServerConfigFromEnv builds a ServerConfig from environment variables.
func ServerConfigFromEnv() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("relay: parse server config: %w", err)
	}
	return cfg, nil
}

// DefaultServerConfig returns a server configuration with sensible
// defaults, taking overrides from the environment when present.
func DefaultServerConfig() *ServerConfig {
	cfg, err := ServerConfigFromEnv()
	if err != nil {
		return &ServerConfig{Port: "8080", ShutdownTimeout: 30 * time.Second}
	}
	return cfg
}

// Server ties a Driver and a Dispatcher together and owns the process
// lifecycle: mount, serve, graceful shutdown on SIGINT/SIGTERM.
type Server struct {
	driver     Driver
	dispatcher *Dispatcher
	config     *ServerConfig
	logger     *zap.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a server over the given driver and dispatcher. A nil
// config falls back to DefaultServerConfig.
func NewServer(driver Driver, dispatcher *Dispatcher, config *ServerConfig, opts ...ServerOption) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	s := &Server{
		driver:     driver,
		dispatcher: dispatcher,
		config:     config,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start mounts all registered routes and blocks until shutdown.
func (s *Server) Start() error {
	if err := s.dispatcher.Mount(s.driver); err != nil {
		return fmt.Errorf("relay: mount routes: %w", err)
	}

	if s.config.PrintRoutes {
		s.printRoutes()
	}

	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			zap.String("driver", s.driver.Name()),
			zap.String("addr", addr))
		if err := s.driver.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("relay: server failed: %w", err)
	case sig := <-quit:
		s.logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.driver.Stop(ctx); err != nil {
		return fmt.Errorf("relay: server forced to shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// printRoutes writes the mounted route table to stdout.
func (s *Server) printRoutes() {
	heading := color.New(color.FgCyan, color.Bold)
	heading.Printf("%s routes:\n", s.driver.Name())

	for _, a := range s.dispatcher.registry.Actions() {
		name := a.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("  %s %-40s %s\n",
			methodColor(a.Method).Sprintf("%-7s", a.Method),
			normalizePath(string(a.Path)),
			color.New(color.Faint).Sprint(name))
	}
}

func methodColor(method string) *color.Color {
	switch method {
	case http.MethodGet:
		return color.New(color.FgGreen)
	case http.MethodPost:
		return color.New(color.FgYellow)
	case http.MethodPut, http.MethodPatch:
		return color.New(color.FgBlue)
	case http.MethodDelete:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}
