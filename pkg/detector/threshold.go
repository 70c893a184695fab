package detector

import (
	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

// Threshold flags readings whose value is strictly greater than Limit
type Threshold struct {
	Limit float64
}

// Name returns the policy name
func (t *Threshold) Name() string { return config.PolicyThreshold }

// Classify returns every reading with Value > Limit. Ties are not anomalous.
func (t *Threshold) Classify(readings []common.Reading) ([]common.Reading, error) {
	if err := common.ValidateReadings(readings); err != nil {
		return nil, &common.ClassificationError{Op: config.PolicyThreshold, Err: err}
	}
	return above(readings, t.Limit), nil
}

func above(readings []common.Reading, limit float64) []common.Reading {
	out := make([]common.Reading, 0)
	for _, r := range readings {
		if r.Value > limit {
			out = append(out, r)
		}
	}
	return out
}
