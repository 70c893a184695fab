package sink

import (
	"fmt"

	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

// NewNotifier creates the webhook sink selected by cfg.Type
func NewNotifier(cfg config.NotifierConfig) (Sink, error) {
	switch cfg.Type {
	case "slack", "":
		return NewSlackSink(cfg.Slack)
	case "feishu":
		return NewFeishuSink(cfg.Feishu)
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", cfg.Type)
	}
}

// NewJournal creates the alert journal selected by cfg.Type. It returns a
// nil Sink when journaling is disabled.
func NewJournal(cfg config.JournalConfig) (Sink, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "csv":
		return NewCSVSink(cfg.CSV)
	case "mysql", "postgres":
		return NewSQLSink(cfg.Type, cfg.SQL)
	default:
		return nil, fmt.Errorf("unsupported journal type: %s", cfg.Type)
	}
}
