package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"
)

// Server is the upstream API emulator.
type Server struct {
	logger     *slog.Logger
	db         *gorm.DB
	httpServer *http.Server
	config     *ServerConfig
}

// ServerConfig holds the configuration for the emulator server.
type ServerConfig struct {
	Logger *slog.Logger

	// HTTP server configuration
	HTTPPort int

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPort     int

	// Seed controls whether an empty database is filled with fake data.
	Seed bool
}

// NewServer creates a new emulator Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}
	if cfg.DBHost == "" {
		return nil, errors.New("database host cannot be empty")
	}
	if cfg.DBPort <= 0 {
		return nil, errors.New("database port must be positive")
	}
	if cfg.DBUser == "" {
		return nil, errors.New("database user cannot be empty")
	}
	if cfg.DBName == "" {
		return nil, errors.New("database name cannot be empty")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the emulator and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting emulator server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	db, err := NewDB(&DBConfig{
		Logger:   s.logger,
		Host:     s.config.DBHost,
		Port:     s.config.DBPort,
		User:     s.config.DBUser,
		Password: s.config.DBPassword,
		DBName:   s.config.DBName,
		SSLMode:  s.config.DBSSLMode,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	if s.config.Seed {
		if err := Seed(s.db, s.logger); err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
	}

	mux := s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("emulator server started successfully")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down emulator server")

	var shutdownErr error

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	if s.db != nil {
		if err := CloseDB(s.db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; database close error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("database close error: %w", err)
			}
		}
	}

	if shutdownErr != nil {
		return shutdownErr
	}

	s.logger.Info("emulator server shutdown completed")
	return nil
}

// setupRoutes configures the HTTP routes. Handler returns the routed
// handler so the e2e suite can drive the emulator through httptest.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Current API surface.
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleMe))
	mux.HandleFunc("GET /api/dump", s.requireAuth(s.handleDump))
	mux.HandleFunc("GET /api/datos-generales", s.requireAuth(s.handleLatest))
	mux.HandleFunc("PUT /api/parcelas/{id}", s.requireAuth(s.handleUpdatePlot))
	mux.HandleFunc("POST /api/sensor-lecturas", s.requireAuth(s.handleCreateReading))
	mux.HandleFunc("GET /api/zonas-riego", s.requireAuth(s.handleZones))

	// Legacy bare paths from the pre-/api revision redirect permanently.
	mux.HandleFunc("POST /auth/register", s.handleLegacy)
	mux.HandleFunc("POST /auth/login", s.handleLegacy)
	mux.HandleFunc("GET /auth/me", s.handleLegacy)
	mux.HandleFunc("GET /dump", s.handleLegacy)
	mux.HandleFunc("GET /datos-generales", s.handleLegacy)
	mux.HandleFunc("PUT /parcelas/{id}", s.handleLegacy)
	mux.HandleFunc("POST /sensor-lecturas", s.handleLegacy)
	mux.HandleFunc("GET /zonas-riego", s.handleLegacy)

	return mux
}

// Handler returns the emulator's HTTP handler backed by the given
// database. Used by the e2e suite to serve the emulator in-process.
func Handler(db *gorm.DB, logger *slog.Logger) http.Handler {
	s := &Server{logger: logger, db: db, config: &ServerConfig{}}
	return s.setupRoutes()
}
