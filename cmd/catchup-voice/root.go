package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/config"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/metrics"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/version"
)

const defaultConfigPath = "configs/config.yaml"

// Dependencies carries the shared state commands need. It is populated by
// the root command's PersistentPreRunE after flags are parsed.
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// NewRootCmd builds the catchup-voice command tree.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "catchup-voice",
		Short: "Record voice notes with live transcription",
		Long: "Records a voice note, streams the audio to the catchup transcription\n" +
			"service over a duplex session, and assembles the live transcript and\n" +
			"enrichment suggestions. Notes that cannot reach the backend are kept\n" +
			"locally for manual retry.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return deps.init(configPath)
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to configuration file")

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewPendingCmd(deps))
	rootCmd.AddCommand(NewRetryCmd(deps))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// init loads .env overrides, the config file, and builds the logger and
// metrics shared by all commands. A missing config file at the default path
// falls back to built-in defaults; an explicitly configured path must exist.
func (d *Dependencies) init(configPath string) error {
	// Optional .env file so CATCHUP_API_KEY and endpoint overrides need not
	// live in the shell profile.
	_ = godotenv.Load()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	d.Config = cfg
	d.Logger = initLogger(cfg.Logging)
	d.Registry = prometheus.NewRegistry()
	d.Metrics = metrics.New(d.Registry)

	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if path == defaultConfigPath {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("config file %s does not exist", path)
	}
	return config.Load(path)
}

// initLogger creates the structured logger from logging configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
