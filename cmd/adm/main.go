// Package main provides the main entry point for the evolveedu admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"evolveedu/cmd/adm/commands"
	"evolveedu/internal/config"
	"evolveedu/internal/database"
	"evolveedu/internal/observability"

	"github.com/spf13/cobra"
)

// Global variables for shared resources
var (
	cfg    *config.Config
	logger *observability.Logger
)

func main() {
	ctx := context.Background()

	// Set default config file if not already set
	if os.Getenv("EVOLVEEDU_CONFIG_FILE") == "" {
		defaultPaths := []string{
			"../config.yaml",
			"../../config.yaml",
			"config.yaml",
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv("EVOLVEEDU_CONFIG_FILE", path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set EVOLVEEDU_CONFIG_FILE environment variable: %v\n", err)
					os.Exit(1)
				}
				break
			}
		}
	}

	// Load configuration
	var err error
	cfg, err = config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level for admin tool
	cfg.Server.LogLevel = "error"

	// Disable all OpenTelemetry features for admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	// Setup observability (tracing/metrics/logging)
	tp, mp, loggerInstance, err := observability.SetupObservability(&cfg.OpenTelemetry, "evolveedu-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	// Store logger globally
	logger = loggerInstance

	// Defer cleanup
	defer func() {
		if shutdownTP, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			if err := shutdownTP.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	// Initialize database manager
	dbManager := database.NewManager(logger)

	// Initialize database connection with configuration (no migrations for admin tool)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error(), "db_url": cfg.Database.URL})
		}
	}()

	// Create the root command
	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Evolveedu Administration Tool",
		Long: `Evolveedu Administration Tool

A CLI tool for administering the evolveedu backend.
Provides commands for database operations, offline note generation,
inference endpoint checks, and one-shot reminder delivery.`,

		Run: func(cmd *cobra.Command, _ []string) {
			// Show help if no subcommand provided
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	// Add subcommands with initialized services
	rootCmd.AddCommand(commands.DatabaseCommands(logger, dbManager, cfg.Database.URL, db))
	rootCmd.AddCommand(commands.NotesCommands(cfg, logger, db))
	rootCmd.AddCommand(commands.InferenceCommands(cfg, logger))
	rootCmd.AddCommand(commands.ReminderCommands(cfg, logger, db))

	// Execute the command
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
