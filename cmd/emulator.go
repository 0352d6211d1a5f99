package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrovista.dev/panel/internal/emulator"
)

var emulatorCmd = &cobra.Command{
	Use:   "emulator",
	Short: "Run the monitoring API emulator",
	Long: `Run the monitoring API emulator that:
- Serves the upstream REST API the panel polls
- Persists plots, readings and zones to PostgreSQL
- Seeds an empty database with realistic fake data
- Redirects the legacy bare-path routes to /api`,
	RunE: runEmulator,
}

func init() {
	rootCmd.AddCommand(emulatorCmd)

	// Emulator-specific flags
	emulatorCmd.Flags().Int("http-port", 3001, "HTTP server port")
	emulatorCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	emulatorCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	emulatorCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	emulatorCmd.Flags().String("db-password", "", "PostgreSQL password")
	emulatorCmd.Flags().String("db-name", "agrovista", "PostgreSQL database name")
	emulatorCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	emulatorCmd.Flags().Bool("seed", true, "Seed an empty database with fake data")

	// Bind flags to viper
	_ = viper.BindPFlag("emulator.http.port", emulatorCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("emulator.db.host", emulatorCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("emulator.db.port", emulatorCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("emulator.db.user", emulatorCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("emulator.db.password", emulatorCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("emulator.db.name", emulatorCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("emulator.db.sslmode", emulatorCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("emulator.seed", emulatorCmd.Flags().Lookup("seed"))
}

func runEmulator(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting emulator service")

	// Create emulator configuration from viper
	config := &emulator.ServerConfig{
		Logger:     logger,
		HTTPPort:   viper.GetInt("emulator.http.port"),
		DBHost:     viper.GetString("emulator.db.host"),
		DBPort:     viper.GetInt("emulator.db.port"),
		DBUser:     viper.GetString("emulator.db.user"),
		DBPassword: viper.GetString("emulator.db.password"),
		DBName:     viper.GetString("emulator.db.name"),
		DBSSLMode:  viper.GetString("emulator.db.sslmode"),
		Seed:       viper.GetBool("emulator.seed"),
	}

	// Create and run server
	server, err := emulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create emulator server", "error", err)
		return err
	}

	logger.Info("emulator server configuration",
		"http_port", config.HTTPPort,
		"db_host", config.DBHost,
		"db_name", config.DBName,
		"seed", config.Seed,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("emulator server error", "error", err)
		return err
	}

	logger.Info("emulator server stopped")
	return nil
}
