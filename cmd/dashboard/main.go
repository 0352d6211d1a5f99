package main

import (
	"context"
	"flag"
	"os"
	"time"

	"agrovista.dev/panel/internal/dashboard"
	"agrovista.dev/panel/pkg/logger"
)

func main() {
	// Parse command-line flags
	httpPort := flag.Int("http-port", 8080, "HTTP server port")
	upstreamURL := flag.String("upstream-url", "http://localhost:3001", "Monitoring API base URL")
	sessionPath := flag.String("session-path", "", "Path for the persisted session credential")
	pollInterval := flag.Duration("poll-interval", 30*time.Second, "Upstream poll cadence")
	metricsEnabled := flag.Bool("metrics", false, "Expose Prometheus metrics on /metrics")
	rabbitMQURL := flag.String("rabbitmq-url", "", "RabbitMQ URL for zone alerts (empty disables)")
	alertQueue := flag.String("alert-queue", "zone-alerts", "RabbitMQ queue name for zone alerts")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Set up logger
	log := logger.NewWithLevel(logger.ParseLevel(*logLevel))

	// Create server configuration
	config := &dashboard.ServerConfig{
		Logger:         log,
		HTTPPort:       *httpPort,
		UpstreamURL:    *upstreamURL,
		SessionPath:    *sessionPath,
		PollInterval:   *pollInterval,
		MetricsEnabled: *metricsEnabled,
		RabbitMQURL:    *rabbitMQURL,
		AlertQueue:     *alertQueue,
	}

	// Create server
	server, err := dashboard.NewServer(config)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Run server
	log.Info("starting dashboard server",
		"http_port", *httpPort,
		"upstream_url", *upstreamURL,
	)

	if err := server.Run(context.Background()); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("dashboard server stopped")
}
