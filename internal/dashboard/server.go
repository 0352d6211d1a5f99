// Package dashboard implements the monitoring panel: a session-gated
// HTTP UI fed by background pollers against the upstream API.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"agrovista.dev/panel/internal/alerts"
	"agrovista.dev/panel/internal/poll"
	"agrovista.dev/panel/internal/upstream"
	"agrovista.dev/panel/pkg/metrics"
	"agrovista.dev/panel/pkg/mq"
	"agrovista.dev/panel/pkg/session"
)

// Server is the panel HTTP server plus its background pollers.
type Server struct {
	logger       *slog.Logger
	config       *ServerConfig
	sessions     *session.Store
	client       *upstream.Client
	state        *PanelState
	metrics      *metrics.DashboardMetrics
	mqClient     mq.ClientInterface
	alertWatcher *alerts.Watcher
	httpServer   *http.Server
	pollWG       sync.WaitGroup
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// HTTP server configuration
	HTTPPort int

	// UpstreamURL is the monitoring API base URL.
	UpstreamURL string

	// SessionPath overrides where the bearer credential is persisted.
	SessionPath string

	// PollInterval overrides the 30s poll cadence (tests).
	PollInterval time.Duration

	// MetricsEnabled exposes /metrics and instruments the server.
	MetricsEnabled bool

	// RabbitMQURL enables zone alert publishing when non-empty.
	RabbitMQURL string

	// AlertQueue is the queue alerts are published to.
	AlertQueue string
}

// NewServer creates a new panel Server instance.
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
	if cfg.UpstreamURL == "" {
		return nil, errors.New("upstream URL cannot be empty")
	}
	if cfg.RabbitMQURL != "" && cfg.AlertQueue == "" {
		return nil, errors.New("alert queue cannot be empty when RabbitMQ is configured")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
		state:  NewPanelState(),
	}, nil
}

// Run starts the panel and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting panel server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	if s.config.MetricsEnabled {
		s.metrics = metrics.NewDashboardMetrics(metrics.DefaultNamespace)
	}

	sessionOpts := []session.Option{session.WithLogger(s.logger)}
	if s.config.SessionPath != "" {
		sessionOpts = append(sessionOpts, session.WithPath(s.config.SessionPath))
	}
	s.sessions = session.NewStore(sessionOpts...)
	s.sessions.OnClear(s.state.ClearUser)

	var upstreamMetrics *metrics.UpstreamMetrics
	if s.config.MetricsEnabled {
		upstreamMetrics = metrics.NewUpstreamMetrics(metrics.DefaultNamespace)
	}
	client, err := upstream.NewClient(&upstream.ClientConfig{
		BaseURL:  s.config.UpstreamURL,
		Sessions: s.sessions,
		Logger:   s.logger,
		Metrics:  upstreamMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}
	s.client = client

	if s.config.RabbitMQURL != "" {
		mqClient := mq.New(s.config.AlertQueue, s.config.RabbitMQURL, s.logger)
		if s.config.MetricsEnabled {
			mqClient.SetMetrics(metrics.NewMQMetrics(metrics.DefaultNamespace))
		}
		s.mqClient = mqClient

		watcher, err := alerts.NewWatcher(alerts.WatcherConfig{
			Queue:  s.mqClient,
			Logger: s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create alert watcher: %w", err)
		}
		s.alertWatcher = watcher
	}

	if err := s.startPollers(ctx); err != nil {
		return fmt.Errorf("failed to start pollers: %w", err)
	}

	// A persisted session survives restarts; recover the profile so the
	// navigation bar has a name before the first page load.
	if s.sessions.IsActive() {
		if user, err := s.client.CurrentUser(ctx); err == nil {
			s.state.SetUser(user)
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

	s.logger.Info("panel server started successfully")

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

	cancel()
	return s.Shutdown()
}

// startPollers launches the three background pollers. Each skips its
// cycle while no operator is signed in.
func (s *Server) startPollers(ctx context.Context) error {
	gated := func(fetch func(context.Context) error) func(context.Context) (struct{}, error) {
		return func(ctx context.Context) (struct{}, error) {
			if !s.sessions.IsActive() {
				return struct{}{}, poll.ErrSkip
			}
			return struct{}{}, fetch(ctx)
		}
	}

	interval := s.config.PollInterval

	snapshotPoller, err := poll.New(poll.Config[struct{}]{
		Name:     "snapshot",
		Interval: interval,
		Fetch: gated(func(ctx context.Context) error {
			snap, err := s.client.FetchSnapshot(ctx)
			if err != nil {
				return err
			}
			s.state.SetSnapshot(snap)
			return nil
		}),
		Commit:  func(struct{}) {},
		OnError: s.state.SetSnapshotError,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	if err != nil {
		return err
	}

	latestPoller, err := poll.New(poll.Config[struct{}]{
		Name:     "latest",
		Interval: interval,
		Fetch: gated(func(ctx context.Context) error {
			reading, err := s.client.FetchLatestReading(ctx)
			if err != nil {
				return err
			}
			s.state.SetLatest(reading)
			return nil
		}),
		Commit:  func(struct{}) {},
		OnError: func(error) { s.state.SetLatestError() },
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	if err != nil {
		return err
	}

	zonesPoller, err := poll.New(poll.Config[struct{}]{
		Name:     "zones",
		Interval: interval,
		Fetch: gated(func(ctx context.Context) error {
			zones, err := s.client.FetchIrrigationZones(ctx)
			if err != nil {
				return err
			}
			s.state.SetZones(zones)
			if s.alertWatcher != nil {
				if err := s.alertWatcher.Observe(ctx, zones); err != nil {
					s.logger.Error("failed to publish zone alerts", "error", err)
				}
			}
			return nil
		}),
		Commit:  func(struct{}) {},
		OnError: s.state.SetZonesError,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	if err != nil {
		return err
	}

	for _, p := range []*poll.Poller[struct{}]{snapshotPoller, latestPoller, zonesPoller} {
		s.pollWG.Add(1)
		go func(p *poll.Poller[struct{}]) {
			defer s.pollWG.Done()
			p.Run(ctx)
		}(p)
	}
	return nil
}

// refresh runs one fetch of every domain immediately. Called right
// after sign-in so the operator does not stare at empty pages until the
// next poll tick.
func (s *Server) refresh(ctx context.Context) {
	if snap, err := s.client.FetchSnapshot(ctx); err == nil {
		s.state.SetSnapshot(snap)
	}
	if reading, err := s.client.FetchLatestReading(ctx); err == nil {
		s.state.SetLatest(reading)
	}
	if zones, err := s.client.FetchIrrigationZones(ctx); err == nil {
		s.state.SetZones(zones)
		if s.alertWatcher != nil {
			if err := s.alertWatcher.Observe(ctx, zones); err != nil {
				s.logger.Error("failed to publish zone alerts", "error", err)
			}
		}
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down panel server")

	var shutdownErr error

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	s.pollWG.Wait()

	if s.mqClient != nil {
		if err := s.mqClient.Close(); err != nil {
			s.logger.Warn("failed to close queue client", "error", err)
		}
	}

	if shutdownErr != nil {
		return shutdownErr
	}

	s.logger.Info("panel server shutdown completed")
	return nil
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.config.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	// Auth surface.
	mux.HandleFunc("GET /{$}", s.withMetrics("/", s.handleLoginPage))
	mux.HandleFunc("POST /login", s.withMetrics("/login", s.handleLoginSubmit))
	mux.HandleFunc("GET /register", s.withMetrics("/register", s.handleRegisterPage))
	mux.HandleFunc("POST /register", s.withMetrics("/register", s.handleRegisterSubmit))
	mux.HandleFunc("POST /logout", s.withMetrics("/logout", s.handleLogout))

	// Panel pages.
	mux.HandleFunc("GET /dashboard", s.withMetrics("/dashboard", s.requireAuth(s.handleDashboard)))
	mux.HandleFunc("GET /estadisticas", s.withMetrics("/estadisticas", s.requireAuth(s.handleStats)))
	mux.HandleFunc("GET /parcelasEliminadas", s.withMetrics("/parcelasEliminadas", s.requireAuth(s.handleDeletedPlots)))
	mux.HandleFunc("GET /valoresOptimos", s.withMetrics("/valoresOptimos", s.requireAuth(s.handleOptimalValues)))
	mux.HandleFunc("GET /zonasRiego", s.withMetrics("/zonasRiego", s.requireAuth(s.handleZones)))

	// htmx fragments.
	mux.HandleFunc("GET /api/fragments/latest", s.withMetrics("/api/fragments/latest", s.requireAuth(s.handleLatestFragment)))

	mux.HandleFunc("GET /static/panel.css", s.handleStylesheet)

	// Unknown routes land on the sign-in page.
	mux.HandleFunc("/", s.handleNotFound)

	return mux
}
