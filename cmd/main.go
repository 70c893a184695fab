package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
	"github.com/meiking/cpu-anomaly-monitor/pkg/dedup"
	"github.com/meiking/cpu-anomaly-monitor/pkg/detector"
	"github.com/meiking/cpu-anomaly-monitor/pkg/logging"
	"github.com/meiking/cpu-anomaly-monitor/pkg/metrics"
	"github.com/meiking/cpu-anomaly-monitor/pkg/processor"
	"github.com/meiking/cpu-anomaly-monitor/pkg/prometheus"
	"github.com/meiking/cpu-anomaly-monitor/pkg/server"
	"github.com/meiking/cpu-anomaly-monitor/pkg/sink"
)

func main() {
	if err := run(); err != nil {
		slog.Error("cpu-monitor exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags
	configPath := flag.String("config", "etc/config.yaml", "Path to configuration file")
	envFile := flag.String("env-file", ".env", "Path to an optional .env file")
	promAddr := flag.String("prometheus", "", "Prometheus base address (overrides config)")
	webhook := flag.String("webhook", "", "Notifier webhook URL (overrides config)")
	interval := flag.String("interval", "", "Polling interval, e.g. 300 or 5m (overrides config)")
	policy := flag.String("policy", "", "Anomaly policy: threshold or kmeans (overrides config)")
	threshold := flag.Float64("threshold", -1, "Threshold percentage (overrides config)")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		return err
	}

	// Flags win over file and environment
	if *promAddr != "" {
		cfg.Prometheus.Address = *promAddr
	}
	if *webhook != "" {
		cfg.SetWebhookURL(*webhook)
	}
	if *interval != "" {
		d, err := config.ParseInterval(*interval)
		if err != nil {
			return fmt.Errorf("invalid -interval: %w", err)
		}
		cfg.Interval = d
	}
	if *policy != "" {
		cfg.Detector.Policy = *policy
	}
	if *threshold >= 0 {
		cfg.Detector.Threshold = *threshold
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(logger)
	slog.Info("configuration loaded",
		"prometheus", cfg.Prometheus.Address,
		"interval", cfg.Interval,
		"policy", cfg.Detector.Policy,
		"threshold", cfg.Detector.Threshold,
		"notifier", cfg.Notifier.Type,
		"journal", cfg.Journal.Type,
		"dedup_window", cfg.Dedup.Window,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create pipeline components
	client, err := prometheus.NewClient(cfg.Prometheus)
	if err != nil {
		return err
	}

	classifier, err := detector.New(cfg.Detector)
	if err != nil {
		return err
	}

	notifier, err := sink.NewNotifier(cfg.Notifier)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	defer notifier.Close()

	opts := []processor.Option{processor.WithLogger(logger)}

	journal, err := sink.NewJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	if journal != nil {
		defer journal.Close()
		opts = append(opts, processor.WithJournal(journal))
	}

	store, err := dedup.New(ctx, cfg.Dedup)
	if err != nil {
		return fmt.Errorf("failed to create dedup store: %w", err)
	}
	defer store.Close()
	opts = append(opts, processor.WithDedup(store))

	monitor := processor.NewProcessor(client, classifier, notifier, opts...)

	if *once {
		res := monitor.RunCycle(ctx)
		return res.Err
	}

	if cfg.Server.Listen != "" {
		reg := promreg.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if err := metrics.Register(reg); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}

		srv := server.New(cfg.Server.Listen, server.NewRouter(monitor, reg))
		go func() {
			if err := srv.Run(ctx); err != nil {
				slog.Error("ops server stopped", "err", err)
			}
		}()
	}

	return monitor.Run(ctx, cfg.Interval)
}

func loadConfig(path, envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	// Load and parse configuration
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}
