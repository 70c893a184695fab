package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

const defaultAlertTable = "cpu_alerts"

// SQLSink journals sent alerts into a MySQL or PostgreSQL table
type SQLSink struct {
	db        *sql.DB
	driver    string
	tableName string
}

// NewSQLSink opens the database for driver ("mysql" or "postgres")
func NewSQLSink(driver string, cfg config.SQLConfig) (*SQLSink, error) {
	slog.Info("sink: initializing SQL journal", "driver", driver, "table", cfg.Table, "create_table", cfg.CreateTable)

	// Validate configuration
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%s DSN is required", driver)
	}
	if driver != "mysql" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported SQL driver: %s", driver)
	}

	tableName := cfg.Table
	if tableName == "" {
		tableName = defaultAlertTable
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	if cfg.CreateTable {
		slog.Info("sink: creating alert table if it does not exist", "table", tableName)
		if _, err := db.Exec(createTableSQL(driver, tableName)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	return &SQLSink{db: db, driver: driver, tableName: tableName}, nil
}

// Name returns the sink name
func (s *SQLSink) Name() string { return s.driver }

// Write inserts one row per anomalous reading in a single statement
func (s *SQLSink) Write(ctx context.Context, alert common.Alert) error {
	if len(alert.Readings) == 0 {
		return nil
	}

	query, args := insertSQL(s.driver, s.tableName, alert)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLSink) Close() error {
	return s.db.Close()
}

// insertSQL builds a multi-row insert using the driver's placeholder style
func insertSQL(driver, table string, alert common.Alert) (string, []any) {
	const cols = 5

	placeholders := make([]string, len(alert.Readings))
	args := make([]any, 0, len(alert.Readings)*cols)
	for i, r := range alert.Readings {
		ph := make([]string, cols)
		for j := range ph {
			if driver == "postgres" {
				ph[j] = fmt.Sprintf("$%d", i*cols+j+1)
			} else {
				ph[j] = "?"
			}
		}
		placeholders[i] = "(" + strings.Join(ph, ", ") + ")"
		args = append(args, alert.Cycle, alert.FiredAt.UTC(), alert.Policy, r.Instance, r.Value)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (cycle_id, fired_at, policy, instance, value) VALUES %s",
		table,
		strings.Join(placeholders, ", "),
	)
	return query, args
}

// createTableSQL returns the alert table DDL for driver
func createTableSQL(driver, table string) string {
	if driver == "postgres" {
		return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			cycle_id VARCHAR(64) NOT NULL,
			fired_at TIMESTAMPTZ NOT NULL,
			policy VARCHAR(32) NOT NULL,
			instance VARCHAR(255) NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`, table)
	}
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			cycle_id VARCHAR(64) NOT NULL,
			fired_at DATETIME NOT NULL,
			policy VARCHAR(32) NOT NULL,
			instance VARCHAR(255) NOT NULL,
			value DOUBLE NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_instance (instance),
			INDEX idx_fired_at (fired_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, table)
}
