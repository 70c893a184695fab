// Package detector selects the anomalous subset of a cycle's CPU readings.
//
// Two policies are available. Threshold flags every reading strictly above a
// fixed percentage. KMeans partitions the values into two clusters and flags
// the cluster with the higher centroid; inputs too small to cluster fall back
// to the threshold policy.
package detector

import (
	"fmt"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

// Classifier returns the subset of readings considered anomalous. The
// returned slice preserves input order and never aliases the input.
type Classifier interface {
	Name() string
	Classify(readings []common.Reading) ([]common.Reading, error)
}

// New builds the classifier selected by cfg.Policy
func New(cfg config.DetectorConfig) (Classifier, error) {
	switch cfg.Policy {
	case config.PolicyThreshold, "":
		return &Threshold{Limit: cfg.Threshold}, nil
	case config.PolicyKMeans:
		return &KMeans{Fallback: cfg.Threshold}, nil
	default:
		return nil, fmt.Errorf("unsupported detector policy: %s", cfg.Policy)
	}
}
