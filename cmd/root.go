package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	cfgpkg "github.com/KaramelBytes/fairloan-cli/internal/config"
	"github.com/KaramelBytes/fairloan-cli/internal/engine"
	"github.com/KaramelBytes/fairloan-cli/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Global flags (applied over config/viper)
	cfgFile    string
	debug      bool
	flagRoot   string
	flagFormat string

	// Loaded configuration
	cfg *cfgpkg.Global
	// Process logger, installed as slog default by loadConfig
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "fairloan",
	Short: "FairLoan CLI: train credit-approval models and audit them for bias",
	Long: `FairLoan trains logistic-regression and decision-tree credit-approval models on tabular
data, reports per-group fairness metrics with a bias flag, renders explanation plots and serves
stored models for prediction.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)

	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.fairloan/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "bundle-root", "", "model bundle directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "log-format", "", "log format: text|json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so read-only commands still run
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Default()
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("bundle-root") && flagRoot != "" {
		cfg.BundleRoot = flagRoot
	}
	if f.Changed("log-format") && flagFormat != "" {
		cfg.LogFormat = flagFormat
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	logger = logging.New(os.Stderr, level, cfg.LogFormat)
	slog.SetDefault(logger)
}

// engineOptions derives training options from the loaded configuration.
func engineOptions() engine.Options {
	opt := engine.DefaultOptions()
	opt.Logger = logger
	if cfg == nil {
		return opt
	}
	opt.BiasThreshold = cfg.BiasThreshold
	opt.TestFraction = cfg.TestFraction
	opt.Seed = cfg.RandomSeed
	opt.TreeMaxDepth = cfg.TreeMaxDepth
	opt.LogisticC = cfg.LogisticC
	opt.LogisticMaxIter = cfg.LogisticMaxIter
	opt.Oversample = cfg.Oversample
	opt.ClipOutliers = cfg.ClipOutliers
	return opt
}

func bundleRoot() string {
	if cfg != nil && cfg.BundleRoot != "" {
		return cfg.BundleRoot
	}
	if dir, err := cfgpkg.Dir(); err == nil {
		return filepath.Join(dir, "models")
	}
	return "models"
}
