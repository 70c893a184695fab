package sink

import (
	"context"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
)

// Sink defines the interface for alert destinations
type Sink interface {
	// Name identifies the sink in logs
	Name() string

	// Write delivers the alert to the destination
	Write(ctx context.Context, alert common.Alert) error

	// Close cleans up any resources used by the sink
	Close() error
}
