// =============================================================================
// Order Report Generator - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (orderreport)
//   ├── serveCmd   (orderreport serve)
//   ├── processCmd (orderreport process)
//   ├── datesCmd   (orderreport dates)
//   └── versionCmd (orderreport version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads the main configuration (--config), .env and environment
//   2. Sets up logging (--verbose forces debug)
//   3. Validates the platform profiles; a malformed profile aborts startup
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-report/internal/config"
	"github.com/ginjaninja78/order-report/internal/logging"
	"github.com/ginjaninja78/order-report/internal/platform"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// app holds what PersistentPreRunE prepared for the subcommands.
var app struct {
	cfg    *config.MainConfig
	rules  map[string]*config.PlatformRule
	log    *logrus.Logger
	closer io.Closer
}

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "orderreport",
	Short: "Order Report Generator - daily order reports from platform exports",
	Long: `Order Report Generator turns the order exports of the official web shop,
Shopee and MOMO into one unified daily report.

Key Features:
  - Per-platform column remapping onto one report layout
  - Date normalization and date selection
  - HTML, JSON and XLSX reports with an order total
  - HTTP API with upload sessions and a small task tracker
  - Batch processing of an input directory

Example Usage:
  orderreport serve                         # Start the HTTP server
  orderreport process                       # Build reports for every export in the input directory
  orderreport dates --file x.xlsx --platform shopee`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return setup()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main().
func Execute() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the command tree and closes the log file whether or not the
// command failed.
func run() error {
	defer closeLogs()
	return rootCmd.Execute()
}

func closeLogs() {
	if app.closer != nil {
		app.closer.Close()
		app.closer = nil
	}
}

// setup loads configuration and logging and checks the profile table.
func setup() error {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	log, closer, err := logging.New(logging.Options{
		File:       cfg.LogFile,
		Level:      cfg.LogLevel,
		Verbose:    verbose,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	if err := platform.ValidateAll(); err != nil {
		closer.Close()
		return fmt.Errorf("invalid platform profile: %w", err)
	}

	rules, err := config.LoadPlatformRules(cfg.ConfigsDir)
	if err != nil {
		closer.Close()
		return fmt.Errorf("failed to load platform rules: %w", err)
	}

	app.cfg = cfg
	app.rules = rules
	app.log = log
	app.closer = closer

	log.WithFields(logrus.Fields{
		"config": cfgFile,
		"rules":  len(rules),
	}).Debug("configuration loaded")
	return nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultPath,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}
