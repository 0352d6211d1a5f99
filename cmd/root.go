// Package main provides the unified CLI entry point for the agrovista services.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = newRootCommand()
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand builds the agrovista root command with the persistent
// flags shared by the dashboard and emulator subcommands.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agrovista",
		Short:   "Agricultural monitoring panel",
		Version: "1.0.0",
		Long: `Panel web de monitoreo agrícola.

Subcommands:
  dashboard  serves the web panel: plots, sensor readings, irrigation
             zones and the live map
  emulator   runs a stand-in monitoring API backed by PostgreSQL, for
             local development and e2e tests`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or /etc/agrovista/config.yaml)")
	cmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")
	if err := viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level")); err != nil {
		log.Fatalf("failed to bind log-level flag: %v", err)
	}

	return cmd
}

func init() {
	cobra.OnInitialize(loadConfig)
}

// loadConfig runs before any subcommand and wires Viper to the config
// file and AGROVISTA_* environment variables.
func loadConfig() {
	if err := InitConfig(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", used)
	}
}
