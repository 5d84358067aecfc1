package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solarekm/reaper/config"
	"github.com/solarekm/reaper/telemetry"
)

var (
	version = "0.1.0"

	flagConfig   string
	flagRegion   string
	flagLogLevel string
	flagDryRun   bool

	rootCmd = &cobra.Command{
		Use:   "reaper",
		Short: "Automated idle instance shutdown for EC2",
		Long: `Reaper - Automated Idle Instance Shutdown

Reaper watches EC2 instances that opted in with the AutoShutdownEnabled
tag, tracks how long each one has been idle against CloudWatch metrics,
and stops instances that stay idle past the configured limit. Every stop
is journaled and announced over SNS and Microsoft Teams.

Nothing happens to instances that did not opt in.`,
		Version:           version,
		PersistentPreRunE: setupLogging,
	}
)

// Execute runs the root command with signal-aware context
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Reaper {{.Version}} - Automated Idle Instance Shutdown
`)

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagRegion, "region", "", "AWS region (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Evaluate and decide but never stop anything")
}

// setupLogging configures zerolog before any command runs. Console output
// when stderr is a terminal, JSON otherwise.
func setupLogging(_ *cobra.Command, _ []string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := flagLogLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zerolog.SetGlobalLevel(parsed)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if info, err := os.Stderr.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return nil
}

// loadConfig reads the config file and applies flag overrides on top
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if flagRegion != "" {
		cfg.Region = flagRegion
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagDryRun {
		cfg.DryRun = true
	}

	return cfg, nil
}

// initTelemetry starts OTEL. The returned shutdown flushes exporters.
func initTelemetry(ctx context.Context) (func(context.Context) error, error) {
	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "reaper",
		ServiceVersion: version,
		Environment:    os.Getenv("ENVIRONMENT"),
		Insecure:       os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	return shutdown, nil
}
