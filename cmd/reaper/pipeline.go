package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/solarekm/reaper/attribution"
	"github.com/solarekm/reaper/config"
	"github.com/solarekm/reaper/executor"
	"github.com/solarekm/reaper/idle"
	"github.com/solarekm/reaper/notify"
	"github.com/solarekm/reaper/orchestrator"
	"github.com/solarekm/reaper/policy"
	"github.com/solarekm/reaper/providers"
	"github.com/solarekm/reaper/providers/aws"
	"github.com/solarekm/reaper/storage"
	"github.com/solarekm/reaper/tracker"
	"github.com/solarekm/reaper/wal"
)

// pipeline bundles the assembled reaper with the handles the commands
// need for teardown and direct access.
type pipeline struct {
	cfg          *config.Config
	clients      *aws.Clients
	orchestrator *orchestrator.Orchestrator
	wal          *wal.WAL
	walDir       string
	journal      *storage.Journal
}

// buildPipeline assembles every component from config: AWS clients,
// evaluator, tracker, executor with its policy gate and WAL, and the
// orchestrator with notification fan-out, attribution, and journaling.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	clients, err := aws.NewClients(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	directory := aws.NewInstanceDirectory(clients.EC2, clients.Region)
	evaluator := idle.NewEvaluator(
		aws.NewMetricFetcher(clients.CloudWatch),
		idle.Thresholds{
			CPU:     cfg.CPUThreshold,
			Network: cfg.NetworkThreshold,
			Disk:    cfg.DiskThreshold,
		},
		cfg.InactivityLimit(),
		int32(cfg.MetricPeriod),
	)
	track := tracker.New(watermarkStore(cfg, clients))

	var gate executor.Gate
	if cfg.PolicyDir != "" {
		engine := policy.NewEngine()
		if err := engine.LoadDir(ctx, cfg.PolicyDir); err != nil {
			return nil, fmt.Errorf("load policies: %w", err)
		}
		gate = engine
	}

	// Every stop attempt is journaled, so a WAL always exists; without an
	// explicit wal_dir the audit trail lands in a temp directory.
	walDir := cfg.WALDir
	if walDir == "" {
		walDir = filepath.Join(os.TempDir(), "reaper-wal")
	}
	walInstance, err := wal.Open(walDir)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	exec := executor.NewEngine(
		aws.NewInstanceStopper(clients.EC2),
		gate,
		walInstance,
		cfg.DryRun,
	)

	orch := orchestrator.New(directory, evaluator, track, exec, cfg.InactivityLimit())
	orch.WithAttributor(attribution.NewResolver(aws.NewLaunchLookup(clients.CloudTrail)))

	if publisher := buildPublisher(cfg, clients); publisher != nil {
		orch.WithPublisher(publisher)
	}

	var journal *storage.Journal
	if cfg.JournalPath != "" {
		journal, err = storage.OpenJournal(cfg.JournalPath)
		if err != nil {
			_ = walInstance.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		orch.WithJournal(journal)
	}

	return &pipeline{
		cfg:          cfg,
		clients:      clients,
		orchestrator: orch,
		wal:          walInstance,
		walDir:       walDir,
		journal:      journal,
	}, nil
}

// watermarkStore picks the configured persistence backend. Tags are the
// default; DynamoDB is the alternative for fleets where tag churn is a
// problem.
func watermarkStore(cfg *config.Config, clients *aws.Clients) providers.WatermarkStore {
	if cfg.StateBackend == config.BackendDynamoDB {
		return storage.NewDynamoWatermarkStore(clients.DynamoDB, cfg.DynamoDBTable)
	}
	return aws.NewTagStore(clients.EC2)
}

// buildPublisher fans shutdown events out to every configured SNS topic
// and, when webhooks are configured, directly to Teams. Returns nil when
// nothing is configured.
func buildPublisher(cfg *config.Config, clients *aws.Clients) orchestrator.Publisher {
	if len(cfg.SNSTopicARNs) == 0 && len(cfg.TeamsWebhookURLs) == 0 {
		return nil
	}

	multi := notify.NewMultiPublisher()
	for _, arn := range cfg.SNSTopicARNs {
		multi.Add(arn, notify.NewSNSPublisher(clients.SNS, arn))
	}
	if len(cfg.TeamsWebhookURLs) > 0 {
		multi.Add("teams", notify.NewTeamsWebhook(cfg.TeamsWebhookURLs))
	}
	return multi
}

// Close releases the pipeline's local resources
func (p *pipeline) Close() {
	if p.wal != nil {
		_ = p.wal.Close()
	}
	if p.journal != nil {
		_ = p.journal.Close()
	}
}
