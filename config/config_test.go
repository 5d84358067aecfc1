package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CPUThreshold != 10 {
		t.Errorf("CPUThreshold = %v, want 10", cfg.CPUThreshold)
	}
	if cfg.NetworkThreshold != 100000 {
		t.Errorf("NetworkThreshold = %v, want 100000", cfg.NetworkThreshold)
	}
	if cfg.DiskThreshold != 1000000 {
		t.Errorf("DiskThreshold = %v, want 1000000", cfg.DiskThreshold)
	}
	if cfg.InactivityHours != 3 {
		t.Errorf("InactivityHours = %v, want 3", cfg.InactivityHours)
	}
	if cfg.MetricPeriod != 300 {
		t.Errorf("MetricPeriod = %v, want 300", cfg.MetricPeriod)
	}
	if cfg.StateBackend != BackendTags {
		t.Errorf("StateBackend = %v, want tags", cfg.StateBackend)
	}
	if len(cfg.SNSTopicARNs) != 0 {
		t.Errorf("SNSTopicARNs = %v, want empty", cfg.SNSTopicARNs)
	}
}

func TestLoad_File(t *testing.T) {
	content := `
region: eu-central-1
cpu_threshold: 5
network_threshold: 50000
inactivity_hours: 6
sns_topic_arns:
  - arn:aws:sns:eu-central-1:123456789012:shutdowns
sweep_interval: 30m
dry_run: true
`
	tmpfile, err := os.CreateTemp("", "reaper-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Region != "eu-central-1" {
		t.Errorf("Region = %v, want eu-central-1", cfg.Region)
	}
	if cfg.CPUThreshold != 5 {
		t.Errorf("CPUThreshold = %v, want 5", cfg.CPUThreshold)
	}
	if cfg.InactivityHours != 6 {
		t.Errorf("InactivityHours = %v, want 6", cfg.InactivityHours)
	}
	// Unset fields keep their defaults
	if cfg.DiskThreshold != 1000000 {
		t.Errorf("DiskThreshold = %v, want default 1000000", cfg.DiskThreshold)
	}
	if len(cfg.SNSTopicARNs) != 1 {
		t.Errorf("SNSTopicARNs = %v, want one entry", cfg.SNSTopicARNs)
	}
	if cfg.SweepInterval != 30*time.Minute {
		t.Errorf("SweepInterval = %v, want 30m", cfg.SweepInterval)
	}
	if !cfg.DryRun {
		t.Error("DryRun should be true")
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv("CPU_THRESHOLD", "2.5")
	t.Setenv("SNS_TOPIC_ARNS", "arn:a, arn:b")
	t.Setenv("INACTIVITY_HOURS", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CPUThreshold != 2.5 {
		t.Errorf("CPUThreshold = %v, want 2.5", cfg.CPUThreshold)
	}
	if len(cfg.SNSTopicARNs) != 2 || cfg.SNSTopicARNs[0] != "arn:a" || cfg.SNSTopicARNs[1] != "arn:b" {
		t.Errorf("SNSTopicARNs = %v, want [arn:a arn:b]", cfg.SNSTopicARNs)
	}
	if cfg.InactivityHours != 0.5 {
		t.Errorf("InactivityHours = %v, want 0.5", cfg.InactivityHours)
	}
}

func TestLoad_MalformedEnvIsFatal(t *testing.T) {
	t.Setenv("NETWORK_THRESHOLD", "lots")

	if _, err := Load(""); err == nil {
		t.Fatal("Load() must fail on malformed numeric environment values")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := *Default()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "default config is valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero cpu threshold",
			mutate:  func(c *Config) { c.CPUThreshold = 0 },
			wantErr: true,
		},
		{
			name:    "negative network threshold",
			mutate:  func(c *Config) { c.NetworkThreshold = -1 },
			wantErr: true,
		},
		{
			name:    "zero inactivity hours",
			mutate:  func(c *Config) { c.InactivityHours = 0 },
			wantErr: true,
		},
		{
			name:    "metric period below a minute",
			mutate:  func(c *Config) { c.MetricPeriod = 30 },
			wantErr: true,
		},
		{
			name:    "unknown state backend",
			mutate:  func(c *Config) { c.StateBackend = "redis" },
			wantErr: true,
		},
		{
			name:    "dynamodb backend without table",
			mutate:  func(c *Config) { c.StateBackend = BackendDynamoDB },
			wantErr: true,
		},
		{
			name: "dynamodb backend with table",
			mutate: func(c *Config) {
				c.StateBackend = BackendDynamoDB
				c.DynamoDBTable = "reaper-watermarks"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_InactivityLimit(t *testing.T) {
	cfg := Config{InactivityHours: 1.5}
	if got := cfg.InactivityLimit(); got != 90*time.Minute {
		t.Errorf("InactivityLimit() = %v, want 90m", got)
	}
}
