package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Watermark backends the tracker can persist to
const (
	BackendTags     = "tags"
	BackendDynamoDB = "dynamodb"
)

// Defaults mirror the original deployment's environment defaults
const (
	DefaultCPUThreshold     = 10.0    // percent
	DefaultNetworkThreshold = 100000  // bytes per period
	DefaultDiskThreshold    = 1000000 // bytes per period
	DefaultInactivityHours  = 3.0
	DefaultMetricPeriod     = 300 // seconds
	DefaultSweepInterval    = time.Hour
)

// Config represents the main configuration
type Config struct {
	Region string `yaml:"region,omitempty"`

	// Idle evaluation thresholds
	CPUThreshold     float64 `yaml:"cpu_threshold"`
	NetworkThreshold float64 `yaml:"network_threshold"`
	DiskThreshold    float64 `yaml:"disk_threshold"`
	InactivityHours  float64 `yaml:"inactivity_hours"`
	MetricPeriod     int     `yaml:"metric_period"`

	// Watermark persistence
	StateBackend  string `yaml:"state_backend,omitempty"`
	DynamoDBTable string `yaml:"dynamodb_table,omitempty"`

	// Notification fan-out
	SNSTopicARNs     []string `yaml:"sns_topic_arns,omitempty"`
	TeamsWebhookURLs []string `yaml:"teams_webhook_urls,omitempty"`
	RelayQueueURL    string   `yaml:"relay_queue_url,omitempty"`

	// Daemon operation
	EventsQueueURL string        `yaml:"events_queue_url,omitempty"`
	SweepInterval  time.Duration `yaml:"sweep_interval,omitempty"`

	// Local state and audit
	JournalPath string `yaml:"journal_path,omitempty"`
	WALDir      string `yaml:"wal_dir,omitempty"`
	PolicyDir   string `yaml:"policy_dir,omitempty"`

	DryRun   bool   `yaml:"dry_run,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns a config carrying the documented defaults
func Default() *Config {
	return &Config{
		CPUThreshold:     DefaultCPUThreshold,
		NetworkThreshold: DefaultNetworkThreshold,
		DiskThreshold:    DefaultDiskThreshold,
		InactivityHours:  DefaultInactivityHours,
		MetricPeriod:     DefaultMetricPeriod,
		StateBackend:     BackendTags,
		SweepInterval:    DefaultSweepInterval,
		LogLevel:         "info",
	}
}

// Load builds configuration from defaults, an optional YAML file, and the
// environment, in that order. Malformed numeric values are an error so the
// process refuses to run with unusable thresholds.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays the canonical environment surface onto the config
func (c *Config) applyEnv() error {
	if err := envFloat("CPU_THRESHOLD", &c.CPUThreshold); err != nil {
		return err
	}
	if err := envFloat("NETWORK_THRESHOLD", &c.NetworkThreshold); err != nil {
		return err
	}
	if err := envFloat("DISK_THRESHOLD", &c.DiskThreshold); err != nil {
		return err
	}
	if err := envFloat("INACTIVITY_HOURS", &c.InactivityHours); err != nil {
		return err
	}
	if err := envInt("METRIC_PERIOD", &c.MetricPeriod); err != nil {
		return err
	}

	if v := os.Getenv("AWS_REGION"); v != "" && c.Region == "" {
		c.Region = v
	}
	if v := os.Getenv("SNS_TOPIC_ARNS"); v != "" {
		c.SNSTopicARNs = splitList(v)
	}
	if v := os.Getenv("TEAMS_WEBHOOK_URLS"); v != "" {
		c.TeamsWebhookURLs = splitList(v)
	}
	if v := os.Getenv("RELAY_QUEUE_URL"); v != "" {
		c.RelayQueueURL = v
	}
	if v := os.Getenv("EVENTS_QUEUE_URL"); v != "" {
		c.EventsQueueURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	return nil
}

// Validate ensures thresholds and backends are usable
func (c *Config) Validate() error {
	if c.CPUThreshold <= 0 {
		return fmt.Errorf("cpu_threshold must be positive, got %v", c.CPUThreshold)
	}
	if c.NetworkThreshold <= 0 {
		return fmt.Errorf("network_threshold must be positive, got %v", c.NetworkThreshold)
	}
	if c.DiskThreshold <= 0 {
		return fmt.Errorf("disk_threshold must be positive, got %v", c.DiskThreshold)
	}
	if c.InactivityHours <= 0 {
		return fmt.Errorf("inactivity_hours must be positive, got %v", c.InactivityHours)
	}
	if c.MetricPeriod < 60 {
		return fmt.Errorf("metric_period must be at least 60 seconds, got %d", c.MetricPeriod)
	}
	switch c.StateBackend {
	case BackendTags:
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("state_backend dynamodb requires dynamodb_table")
		}
	default:
		return fmt.Errorf("unknown state_backend %q", c.StateBackend)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %v", c.SweepInterval)
	}
	return nil
}

// InactivityLimit returns the idle limit as a duration
func (c *Config) InactivityLimit() time.Duration {
	return time.Duration(c.InactivityHours * float64(time.Hour))
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("malformed %s %q: %w", key, v, err)
	}
	*dst = f
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("malformed %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
