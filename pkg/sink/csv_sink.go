package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

var csvHeader = []string{"cycle", "fired_at", "policy", "instance", "value"}

// CSVSink journals sent alerts to a CSV file, one row per anomalous reading
type CSVSink struct {
	outputDir string
	now       func() time.Time

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink creates a new CSV sink
func NewCSVSink(cfg config.CSVConfig) (*CSVSink, error) {
	dir := cfg.OutputDir
	if dir == "" {
		dir = "."
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &CSVSink{outputDir: dir, now: time.Now}, nil
}

// Name returns the sink name
func (s *CSVSink) Name() string { return "csv" }

// Write appends the alert rows and flushes them
func (s *CSVSink) Write(_ context.Context, alert common.Alert) error {
	if len(alert.Readings) == 0 {
		return nil // Nothing to write
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create writer on first use
	if s.writer == nil {
		if err := s.createWriter(); err != nil {
			return err
		}
	}

	firedAt := alert.FiredAt.UTC().Format(time.RFC3339)
	for _, r := range alert.Readings {
		row := []string{
			alert.Cycle,
			firedAt,
			alert.Policy,
			r.Instance,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
		}
		if err := s.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	// Flush after every alert so the journal survives a kill
	s.writer.Flush()

	return s.writer.Error()
}

// Path returns the journal file path, or "" before the first write
func (s *CSVSink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ""
	}
	return s.file.Name()
}

// Close cleans up resources
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	err := s.file.Close()
	s.file, s.writer = nil, nil
	if err != nil {
		return fmt.Errorf("error closing CSV journal: %w", err)
	}
	return nil
}

// createWriter opens a timestamped journal file and writes the header
func (s *CSVSink) createWriter() error {
	filename := fmt.Sprintf("cpu_alerts_%s.csv", s.now().Format("20060102150405"))
	path := filepath.Join(s.outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	s.file = file
	s.writer = writer

	return nil
}
