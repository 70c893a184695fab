package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Interval != 300*time.Second {
		t.Errorf("Interval = %s, want 5m", cfg.Interval)
	}
	if cfg.Detector.Policy != PolicyThreshold {
		t.Errorf("Policy = %q, want threshold", cfg.Detector.Policy)
	}
	if cfg.Detector.Threshold != 80.0 {
		t.Errorf("Threshold = %v, want 80", cfg.Detector.Threshold)
	}
	if cfg.Notifier.Type != "slack" {
		t.Errorf("Notifier.Type = %q, want slack", cfg.Notifier.Type)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
prometheus:
  address: http://prom:9090
  timeout: 10s
  username: admin
  password: s3cret
interval: 1m
detector:
  policy: kmeans
  threshold: 90
notifier:
  type: feishu
  feishu:
    webhook_url: https://open.feishu.cn/open-apis/bot/v2/hook/abc
    secret: sign
dedup:
  window: 30m
  backend: redis
  redis:
    addr: redis:6379
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Prometheus.Address != "http://prom:9090" || cfg.Prometheus.Timeout != 10*time.Second {
		t.Errorf("Prometheus = %+v", cfg.Prometheus)
	}
	if cfg.Interval != time.Minute {
		t.Errorf("Interval = %s, want 1m", cfg.Interval)
	}
	if cfg.Detector.Policy != PolicyKMeans || cfg.Detector.Threshold != 90 {
		t.Errorf("Detector = %+v", cfg.Detector)
	}
	if got := cfg.WebhookURL(); got != "https://open.feishu.cn/open-apis/bot/v2/hook/abc" {
		t.Errorf("WebhookURL() = %q", got)
	}
	if cfg.Dedup.Window != 30*time.Minute || cfg.Dedup.Redis.Addr != "redis:6379" {
		t.Errorf("Dedup = %+v", cfg.Dedup)
	}
	// untouched sections keep their defaults
	if cfg.Server.Listen != DefaultListen {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, DefaultListen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "prometheus: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should fail on invalid YAML")
	}
}

func TestLoad_SQLJournal(t *testing.T) {
	path := writeConfig(t, `
prometheus:
  address: http://prom:9090
notifier:
  type: slack
  slack:
    webhook_url: https://hooks.slack.com/services/abc
journal:
  type: postgres
  sql:
    dsn: postgres://monitor:pw@db:5432/monitor?sslmode=disable
    table: cpu_alerts
    create_table: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := SQLConfig{DSN: "postgres://monitor:pw@db:5432/monitor?sslmode=disable", Table: "cpu_alerts", CreateTable: true}
	if cfg.Journal.Type != "postgres" || cfg.Journal.SQL != want {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPrometheusAddress: "http://env-prom:9090",
		EnvWebhookURL:        "https://hooks.slack.com/services/env",
		EnvInterval:          "120",
		EnvPolicy:            "kmeans",
		EnvThreshold:         "75.5",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if cfg.Prometheus.Address != "http://env-prom:9090" {
		t.Errorf("Address = %q", cfg.Prometheus.Address)
	}
	if cfg.Notifier.Slack.WebhookURL != "https://hooks.slack.com/services/env" {
		t.Errorf("Slack.WebhookURL = %q", cfg.Notifier.Slack.WebhookURL)
	}
	if cfg.Interval != 2*time.Minute {
		t.Errorf("Interval = %s, want 2m", cfg.Interval)
	}
	if cfg.Detector.Policy != PolicyKMeans || cfg.Detector.Threshold != 75.5 {
		t.Errorf("Detector = %+v", cfg.Detector)
	}
}

func TestApplyEnv_BadThreshold(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == EnvThreshold {
			return "high", true
		}
		return "", false
	})
	if err == nil || !strings.Contains(err.Error(), EnvThreshold) {
		t.Fatalf("applyEnv() error = %v, want mention of %s", err, EnvThreshold)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CPUMON_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CPUMON_TEST_DOTENV") })

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("CPUMON_TEST_DOTENV"); got != "loaded" {
		t.Errorf("CPUMON_TEST_DOTENV = %q, want loaded", got)
	}
}

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"300", 300 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"soon", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseInterval(tc.in)
		if (err != nil) != tc.err {
			t.Errorf("ParseInterval(%q) error = %v, wantErr %v", tc.in, err, tc.err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseInterval(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Prometheus.Address = "http://prom:9090"
		cfg.Notifier.Slack.WebhookURL = "https://hooks.slack.com/services/x"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"no address", func(c *Config) { c.Prometheus.Address = "" }, "prometheus.address"},
		{"zero interval", func(c *Config) { c.Interval = 0 }, "interval"},
		{"bad policy", func(c *Config) { c.Detector.Policy = "dbscan" }, "policy"},
		{"threshold range", func(c *Config) { c.Detector.Threshold = 120 }, "threshold"},
		{"no webhook", func(c *Config) { c.Notifier.Slack.WebhookURL = "" }, "webhook_url"},
		{"bad notifier", func(c *Config) { c.Notifier.Type = "email" }, "notifier type"},
		{"sql journal without dsn", func(c *Config) { c.Journal.Type = "mysql" }, "dsn"},
		{"bad journal", func(c *Config) { c.Journal.Type = "kafka" }, "journal type"},
		{"redis without addr", func(c *Config) {
			c.Dedup.Backend = "redis"
			c.Dedup.Window = time.Minute
		}, "dedup.redis.addr"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
