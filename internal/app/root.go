package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/config"
	"github.com/blackwell-systems/basketlift/internal/logging"
)

var (
	dbPath     string
	configPath string
	logLevel   string
	logFormat  string

	// settings is the configuration loaded for the running command.
	settings = config.Default()

	// RootCmd is the root command for basketlift
	RootCmd = &cobra.Command{
		Use:   "basketlift",
		Short: "Product affinity analysis for retail basket data",
		Long: `basketlift finds products that are bought together. It computes support,
confidence and lift for every pair of products in your transaction history and
keeps those statistics current as new transactions stream in.

Metrics:
  • Support:    share of transactions containing the item or pair
  • Confidence: share of buyers of A who also buy B
  • Lift:       confidence relative to B's baseline (>1 means A boosts B)

Quick Start:
  1. basketlift generate            # or: basketlift import sales.csv
  2. basketlift analyze
  3. basketlift recommend P001

Examples:
  # Load a point-of-sale export
  basketlift import sales.csv --products products.csv

  # Rank rules by confidence and write reports and charts
  basketlift analyze --metric confidence --report-dir reports

  # Keep statistics current from a transaction stream
  basketlift watch --stream transactions.ndjson`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadSettings,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "basketlift: product affinity analysis for retail basket data")
			fmt.Fprintln(out)
			path, err := getDBPath()
			if err == nil {
				if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
					fmt.Fprintln(out, "Run 'basketlift generate' or 'basketlift import <file>' to get started.")
					fmt.Fprintln(out, "Run 'basketlift --help' for the full reference.")
					return nil
				}
			}
			fmt.Fprintln(out, "Tip: Run 'basketlift analyze' to compute affinity rules.")
			fmt.Fprintln(out, "     Run 'basketlift stats' to view co-occurrence statistics.")
			fmt.Fprintln(out, "     Run 'basketlift --help' for all commands.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.basketlift/basketlift.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $BASKETLIFT_CONFIG, ./basketlift.yaml or ~/.config/basketlift/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config: info)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json (default from config: console)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(generateCmd)
	RootCmd.AddCommand(importCmd)
	RootCmd.AddCommand(analyzeCmd)
	RootCmd.AddCommand(recommendCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(runsCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadSettings loads the layered configuration and initializes logging.
// Flags override both the config file and the environment.
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	settings = cfg
	return nil
}

// getDBPath returns the database path: the --db flag, then storage.db_path
// from the config, then ~/.basketlift/basketlift.db.
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if settings.Storage.DBPath != "" {
		return settings.Storage.DBPath, nil
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return "", err
	}

	// Create .basketlift directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create basketlift directory: %w", err)
	}

	return filepath.Join(dataDir, "basketlift.db"), nil
}
