package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrovista.dev/panel/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run the panel server",
	Long: `Run the monitoring panel server that:
- Serves the web UI for plots, sensor readings and irrigation zones
- Polls the upstream monitoring API every 30 seconds
- Publishes zone status alerts to RabbitMQ when configured
- Uses htmx for in-place reading refresh`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	// Dashboard-specific flags
	dashboardCmd.Flags().Int("http-port", 8080, "HTTP server port")
	dashboardCmd.Flags().String("upstream-url", "http://localhost:3001", "Monitoring API base URL")
	dashboardCmd.Flags().String("session-path", "", "Path for the persisted session credential")
	dashboardCmd.Flags().Duration("poll-interval", 30*time.Second, "Upstream poll cadence")
	dashboardCmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on /metrics")
	dashboardCmd.Flags().String("rabbitmq-url", "", "RabbitMQ URL for zone alerts (empty disables)")
	dashboardCmd.Flags().String("alert-queue", "zone-alerts", "RabbitMQ queue name for zone alerts")

	// Bind flags to viper
	_ = viper.BindPFlag("dashboard.http.port", dashboardCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("dashboard.upstream.url", dashboardCmd.Flags().Lookup("upstream-url"))
	_ = viper.BindPFlag("dashboard.session.path", dashboardCmd.Flags().Lookup("session-path"))
	_ = viper.BindPFlag("dashboard.poll.interval", dashboardCmd.Flags().Lookup("poll-interval"))
	_ = viper.BindPFlag("dashboard.metrics.enabled", dashboardCmd.Flags().Lookup("metrics"))
	_ = viper.BindPFlag("dashboard.rabbitmq.url", dashboardCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("dashboard.rabbitmq.alert_queue", dashboardCmd.Flags().Lookup("alert-queue"))
}

func runDashboard(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting dashboard service")

	// Create dashboard configuration from viper
	config := &dashboard.ServerConfig{
		Logger:         logger,
		HTTPPort:       viper.GetInt("dashboard.http.port"),
		UpstreamURL:    viper.GetString("dashboard.upstream.url"),
		SessionPath:    viper.GetString("dashboard.session.path"),
		PollInterval:   viper.GetDuration("dashboard.poll.interval"),
		MetricsEnabled: viper.GetBool("dashboard.metrics.enabled"),
		RabbitMQURL:    viper.GetString("dashboard.rabbitmq.url"),
		AlertQueue:     viper.GetString("dashboard.rabbitmq.alert_queue"),
	}

	// Create and run server
	server, err := dashboard.NewServer(config)
	if err != nil {
		logger.Error("failed to create dashboard server", "error", err)
		return err
	}

	logger.Info("dashboard server configuration",
		"http_port", config.HTTPPort,
		"upstream_url", config.UpstreamURL,
		"poll_interval", config.PollInterval.String(),
		"metrics_enabled", config.MetricsEnabled,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("dashboard server error", "error", err)
		return err
	}

	logger.Info("dashboard server stopped")
	return nil
}
