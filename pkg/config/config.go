package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy names accepted by the detector
const (
	PolicyThreshold = "threshold"
	PolicyKMeans    = "kmeans"
)

// Defaults applied before the file and environment are read
const (
	DefaultInterval  = 300 * time.Second
	DefaultThreshold = 80.0
	DefaultListen    = ":9102"
)

// Config represents the main application configuration
type Config struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Interval   time.Duration    `yaml:"interval"`
	Detector   DetectorConfig   `yaml:"detector"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Journal    JournalConfig    `yaml:"journal"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// PrometheusConfig contains configuration for the metrics backend
type PrometheusConfig struct {
	Address     string        `yaml:"address"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Username    string        `yaml:"username,omitempty"`
	Password    string        `yaml:"password,omitempty"`
	BearerToken string        `yaml:"bearer_token,omitempty"`
}

// DetectorConfig selects the anomaly policy
type DetectorConfig struct {
	Policy    string  `yaml:"policy"`
	Threshold float64 `yaml:"threshold"`
}

// NotifierConfig contains configuration for the alert webhook
type NotifierConfig struct {
	Type   string       `yaml:"type"`
	Slack  SlackConfig  `yaml:"slack,omitempty"`
	Feishu FeishuConfig `yaml:"feishu,omitempty"`
}

// SlackConfig contains configuration for a Slack incoming webhook
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// FeishuConfig contains configuration for a Feishu custom bot webhook
type FeishuConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Secret     string `yaml:"secret,omitempty"`
}

// JournalConfig configures where sent alerts are recorded. Empty type disables it.
type JournalConfig struct {
	Type string    `yaml:"type"`
	CSV  CSVConfig `yaml:"csv,omitempty"`
	SQL  SQLConfig `yaml:"sql,omitempty"`
}

// CSVConfig contains configuration for the CSV journal
type CSVConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// SQLConfig contains configuration for the SQL journal. It is shared by the
// mysql and postgres journal types.
type SQLConfig struct {
	DSN         string `yaml:"dsn"`
	Table       string `yaml:"table"`
	CreateTable bool   `yaml:"create_table"`
}

// DedupConfig configures alert suppression. A zero window disables it.
type DedupConfig struct {
	Window  time.Duration `yaml:"window"`
	Backend string        `yaml:"backend"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
}

// RedisConfig contains connection settings for the redis dedup backend
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

// ServerConfig configures the ops HTTP listener. Empty listen disables it.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		Interval: DefaultInterval,
		Detector: DetectorConfig{
			Policy:    PolicyThreshold,
			Threshold: DefaultThreshold,
		},
		Notifier: NotifierConfig{Type: "slack"},
		Dedup:    DedupConfig{Backend: "memory"},
		Server:   ServerConfig{Listen: DefaultListen},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads and parses a YAML configuration file on top of the defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// WebhookURL returns the URL of the configured notifier type
func (c *Config) WebhookURL() string {
	switch c.Notifier.Type {
	case "feishu":
		return c.Notifier.Feishu.WebhookURL
	default:
		return c.Notifier.Slack.WebhookURL
	}
}

// SetWebhookURL stores url on the configured notifier type
func (c *Config) SetWebhookURL(url string) {
	switch c.Notifier.Type {
	case "feishu":
		c.Notifier.Feishu.WebhookURL = url
	default:
		c.Notifier.Slack.WebhookURL = url
	}
}

// Validate checks that the configuration can drive a monitor
func (c *Config) Validate() error {
	var errs []error

	if c.Prometheus.Address == "" {
		errs = append(errs, errors.New("prometheus.address is required"))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}

	switch c.Detector.Policy {
	case PolicyThreshold, PolicyKMeans:
	default:
		errs = append(errs, fmt.Errorf("unknown detector policy %q", c.Detector.Policy))
	}
	if c.Detector.Threshold < 0 || c.Detector.Threshold > 100 {
		errs = append(errs, fmt.Errorf("detector.threshold must be within [0,100], got %v", c.Detector.Threshold))
	}

	switch c.Notifier.Type {
	case "slack", "feishu":
		if c.WebhookURL() == "" {
			errs = append(errs, fmt.Errorf("notifier.%s.webhook_url is required", c.Notifier.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported notifier type %q", c.Notifier.Type))
	}

	switch c.Journal.Type {
	case "", "csv":
	case "mysql", "postgres":
		if c.Journal.SQL.DSN == "" {
			errs = append(errs, fmt.Errorf("journal.sql.dsn is required for %s journal", c.Journal.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported journal type %q", c.Journal.Type))
	}

	if c.Dedup.Window < 0 {
		errs = append(errs, fmt.Errorf("dedup.window must not be negative, got %s", c.Dedup.Window))
	}
	switch c.Dedup.Backend {
	case "", "memory":
	case "redis":
		if c.Dedup.Window > 0 && c.Dedup.Redis.Addr == "" {
			errs = append(errs, errors.New("dedup.redis.addr is required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported dedup backend %q", c.Dedup.Backend))
	}

	return errors.Join(errs...)
}
