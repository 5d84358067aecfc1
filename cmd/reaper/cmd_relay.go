package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solarekm/reaper/internal/relay"
	"github.com/solarekm/reaper/notify"
	"github.com/solarekm/reaper/providers/aws"
)

var (
	relayQueueURL string
	relayWebhooks []string
)

// relayCmd represents the relay command
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay shutdown notifications to Microsoft Teams",
	Long: `Consume SNS-wrapped shutdown notifications from an SQS queue and
post each one to Microsoft Teams as an Adaptive Card.

Subscribe the queue to the reaper's SNS topic; the relay unwraps the
envelope, renders the card, and acknowledges the message. Malformed
messages are discarded so they cannot poison the queue.`,
	Example: `  reaper relay                                  # Queue and webhooks from config
  reaper relay --queue https://sqs.../shutdowns # Explicit queue URL
  reaper relay --webhook https://outlook...     # Additional webhook`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().StringVar(&relayQueueURL, "queue", "", "SQS queue URL (overrides config)")
	relayCmd.Flags().StringArrayVar(&relayWebhooks, "webhook", nil, "Teams webhook URL (repeatable, appended to config)")
}

func runRelay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	queueURL := cfg.RelayQueueURL
	if relayQueueURL != "" {
		queueURL = relayQueueURL
	}
	if queueURL == "" {
		return fmt.Errorf("no relay queue configured: set relay_queue_url or --queue")
	}

	webhooks := append([]string{}, cfg.TeamsWebhookURLs...)
	webhooks = append(webhooks, relayWebhooks...)
	if len(webhooks) == 0 {
		return fmt.Errorf("no Teams webhooks configured: set teams_webhook_urls or --webhook")
	}

	shutdown, err := initTelemetry(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(ctx) }()

	clients, err := aws.NewClients(ctx, cfg.Region)
	if err != nil {
		return err
	}

	fmt.Printf("📮 Relay starting: %d webhook(s)\n", len(webhooks))

	r := relay.New(
		aws.NewEventQueue(clients.SQS, queueURL),
		notify.NewTeamsWebhook(webhooks),
	)
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("relay: %w", err)
	}

	fmt.Println("👋 Relay stopped")
	return nil
}
