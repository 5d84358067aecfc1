package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var handleEventPath string

// handleCmd represents the handle command
var handleCmd = &cobra.Command{
	Use:   "handle",
	Short: "Process one trigger payload",
	Long: `Process a single trigger payload the way a scheduled invocation
would receive it.

An EC2 state-change payload ({"source": "aws.ec2", "detail":
{"instance-id": ..., "state": ...}}) processes just that instance;
only the running state is acted on. Any other payload falls back to a
full sweep.`,
	Example: `  reaper handle --event payload.json    # Read payload from a file
  reaper handle --event -               # Read payload from stdin
  echo '{}' | reaper handle             # Empty payload sweeps everything`,
	RunE: runHandle,
}

func init() {
	rootCmd.AddCommand(handleCmd)

	handleCmd.Flags().StringVarP(&handleEventPath, "event", "e", "-", "Payload file, or - for stdin")
}

func runHandle(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	payload, err := readPayload(handleEventPath, cmd.InOrStdin())
	if err != nil {
		return err
	}

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

	summary, err := p.orchestrator.HandleEvent(ctx, payload)
	if err != nil {
		return err
	}

	writeSweepSummary(os.Stdout, summary, cfg.DryRun)
	return nil
}

// readPayload loads the trigger payload from a file or the given reader
func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		payload, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		return payload, nil
	}

	payload, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}
	return payload, nil
}
