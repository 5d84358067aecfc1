package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solarekm/reaper/internal/daemon"
	"github.com/solarekm/reaper/providers/aws"
	"github.com/solarekm/reaper/wal"
)

var daemonListenAddr string

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous sweeps with event intake",
	Long: `Run the reaper as a long-lived process.

The daemon sweeps all running instances on the configured interval and,
when an events queue is configured, consumes EC2 state-change events
from SQS to react to freshly started instances without waiting for the
next tick. Liveness, readiness, and Prometheus metrics are served over
HTTP, and audit WAL segments are pruned past retention.`,
	Example: `  reaper daemon                         # Hourly sweeps, default port
  reaper daemon --listen :2112          # Custom metrics port
  reaper daemon --dry-run               # Watch without stopping
  reaper daemon --config reaper.yaml    # Queue and interval from config`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonListenAddr, "listen", ":9090", "HTTP listen address for health and metrics")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	shutdown, err := initTelemetry(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(ctx) }()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	d, err := daemon.New(p.orchestrator, daemon.Config{
		SweepInterval: cfg.SweepInterval,
		ListenAddr:    daemonListenAddr,
		WALDir:        p.walDir,
		WALConfig:     wal.DefaultConfig(),
	})
	if err != nil {
		return err
	}
	d.WithWAL(p.wal)

	if cfg.EventsQueueURL != "" {
		d.WithQueue(aws.NewEventQueue(p.clients.SQS, cfg.EventsQueueURL))
	}

	fmt.Printf("🚀 Reaper daemon starting\n")
	fmt.Printf("   Region: %s\n", p.clients.Region)
	fmt.Printf("   Sweep interval: %s\n", cfg.SweepInterval)
	fmt.Printf("   Metrics: http://localhost%s/metrics\n", daemonListenAddr)
	if cfg.EventsQueueURL != "" {
		fmt.Printf("   Events queue: %s\n", cfg.EventsQueueURL)
	}
	if cfg.DryRun {
		fmt.Printf("   💤 Dry run: nothing will be stopped\n")
	}
	fmt.Println()

	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	fmt.Println("👋 Daemon stopped")
	return nil
}
