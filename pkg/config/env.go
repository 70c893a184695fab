package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv
const (
	EnvPrometheusAddress = "CPUMON_PROMETHEUS_ADDRESS"
	EnvWebhookURL        = "CPUMON_WEBHOOK_URL"
	EnvInterval          = "CPUMON_INTERVAL"
	EnvPolicy            = "CPUMON_POLICY"
	EnvThreshold         = "CPUMON_THRESHOLD"
	EnvLogLevel          = "CPUMON_LOG_LEVEL"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from the environment
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrometheusAddress); ok && v != "" {
		c.Prometheus.Address = v
	}
	if v, ok := lookup(EnvWebhookURL); ok && v != "" {
		c.SetWebhookURL(v)
	}
	if v, ok := lookup(EnvPolicy); ok && v != "" {
		c.Detector.Policy = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvInterval); ok && v != "" {
		d, err := ParseInterval(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvInterval, err)
		}
		c.Interval = d
	}
	if v, ok := lookup(EnvThreshold); ok && v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreshold, err)
		}
		c.Detector.Threshold = t
	}
	return nil
}

// ParseInterval accepts a Go duration ("5m") or a bare number of seconds ("300")
func ParseInterval(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}
