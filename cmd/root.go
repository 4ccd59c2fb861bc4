// =============================================================================
// Freight PO Editor - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (editor-po)
//   ├── runCmd     (editor-po run)
//   ├── selectCmd  (editor-po select)
//   ├── watchCmd   (editor-po watch)
//   ├── rulesCmd   (editor-po rules)
//   ├── configCmd  (editor-po config init)
//   └── versionCmd (editor-po version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration through viper
//   3. Building the zap logger shared by every command
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SideneiSilva/editor-po-barry/internal/config"
	"github.com/SideneiSilva/editor-po-barry/internal/logging"
	"github.com/SideneiSilva/editor-po-barry/internal/pipeline"
	"github.com/SideneiSilva/editor-po-barry/internal/rules"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile is the path to the configuration file. Empty means config.yaml in
// the working directory or in ~/.config/editor-po.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// appConfig is loaded once by setup before any command runs.
var appConfig *config.MainConfig

// logger is replaced by setup; commands that run before it get a no-op.
var logger = zap.NewNop()

// skipConfig marks commands that must work without a loaded configuration.
const skipConfig = "skip-config"

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "editor-po",
	Short: "Freight PO Editor - stamp purchase order codes into CT-e documents",
	Long: `Freight PO Editor sweeps the category intake folders (FRETE, TRANSFERENCIA,
CUSTO), writes the purchase order code each CT-e calls for into its
observation field and moves the result to the matching output folder.

Loose .xml documents and .zip archives of documents are both accepted.
Every processed item is recorded in the PO ledger; every failure in the
error ledger, with the item left where it was.

Example Usage:
  editor-po run                         # Sweep every category once
  editor-po run --category FREIGHT      # Sweep a single category
  editor-po select --input ./in --output ./out
  editor-po watch                       # Sweep again whenever files arrive`,

	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the configuration file (default is ./config.yaml or ~/.config/editor-po/config.yaml)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// setup loads the configuration and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	level, format := "info", "console"

	if cmd.Annotations[skipConfig] == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appConfig = cfg
		level, format = cfg.LogLevel, cfg.LogFormat
	}

	if verbose {
		level = "debug"
	}

	l, err := logging.New(level, format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = l
	return nil
}

// newPipeline wires the production rule table and payer registry.
func newPipeline(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	opts = append([]pipeline.Option{pipeline.WithLogger(logger)}, opts...)
	p, err := pipeline.New(appConfig, rules.Default(), rules.DefaultRegistry(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start pipeline: %w", err)
	}
	return p, nil
}
