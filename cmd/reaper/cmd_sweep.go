package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/solarekm/reaper/orchestrator"
)

const summaryRounding = time.Millisecond

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate every running instance once",
	Long: `Run one sweep over all running EC2 instances in the region.

Instances carrying the AutoShutdownEnabled tag are evaluated against
CloudWatch utilization, their idle watermarks are reconciled, and
anything idle past the inactivity limit is stopped and announced.
Instances without the tag are counted and left alone.`,
	Example: `  reaper sweep                          # Sweep with config defaults
  reaper sweep --region eu-west-1       # Sweep a specific region
  reaper sweep --dry-run                # Decide but never stop
  reaper sweep --config reaper.yaml     # Explicit config file`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
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

	summary, err := p.orchestrator.Sweep(ctx)
	if err != nil {
		return err
	}

	writeSweepSummary(os.Stdout, summary, cfg.DryRun)
	return nil
}

// writeSweepSummary prints the human-facing outcome of one sweep
func writeSweepSummary(w io.Writer, summary *orchestrator.SweepSummary, dryRun bool) {
	if dryRun {
		fmt.Fprintln(w, "💤 Dry run: no instances were stopped")
	}
	fmt.Fprintf(w, "🔍 Sweep complete: %d scanned, %d stopped, %d skipped, %d failed in %s\n",
		summary.Scanned,
		summary.Stopped,
		summary.Skipped,
		summary.Failed,
		summary.Duration.Round(summaryRounding),
	)
}
