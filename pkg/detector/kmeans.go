package detector

import (
	"errors"
	"log/slog"
	"math"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

const defaultMaxIter = 100

// KMeans runs two-cluster k-means on the reading values and flags the
// cluster with the higher centroid. Seeding is deterministic (minimum and
// maximum value), so the same input always yields the same subset.
//
// Inputs with fewer than two readings or fewer than two distinct values
// cannot be split and are classified with the threshold policy at Fallback.
type KMeans struct {
	Fallback float64
	MaxIter  int
}

// Name returns the policy name
func (k *KMeans) Name() string { return config.PolicyKMeans }

// Classify returns the readings assigned to the higher-centroid cluster
func (k *KMeans) Classify(readings []common.Reading) ([]common.Reading, error) {
	if err := common.ValidateReadings(readings); err != nil {
		return nil, &common.ClassificationError{Op: config.PolicyKMeans, Err: err}
	}

	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Value
	}

	labels, low, high, err := k.fit(values)
	if errors.Is(err, common.ErrInsufficientData) {
		slog.Debug("detector: too few distinct values to cluster, using threshold",
			"readings", len(readings), "threshold", k.Fallback)
		return above(readings, k.Fallback), nil
	}
	if err != nil {
		return nil, &common.ClassificationError{Op: config.PolicyKMeans, Err: err}
	}

	slog.Debug("detector: clustered readings", "low_centroid", low, "high_centroid", high)

	out := make([]common.Reading, 0)
	for i, r := range readings {
		if labels[i] {
			out = append(out, r)
		}
	}
	return out, nil
}

// Centroids returns the two cluster centroids for values, lowest first
func (k *KMeans) Centroids(values []float64) (low, high float64, err error) {
	_, low, high, err = k.fit(values)
	return low, high, err
}

// fit runs Lloyd's algorithm with k=2. labels[i] is true when values[i]
// belongs to the high cluster.
func (k *KMeans) fit(values []float64) (labels []bool, low, high float64, err error) {
	if len(values) < 2 {
		return nil, 0, 0, common.ErrInsufficientData
	}

	low, high = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		low = math.Min(low, v)
		high = math.Max(high, v)
	}
	if low == high {
		return nil, 0, 0, common.ErrInsufficientData
	}

	maxIter := k.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}

	labels = make([]bool, len(values))
	for iter := 0; iter < maxIter; iter++ {
		changed := iter == 0
		var sumLow, sumHigh float64
		var nLow, nHigh int

		for i, v := range values {
			// ties go to the low cluster
			isHigh := math.Abs(v-high) < math.Abs(v-low)
			if isHigh != labels[i] {
				labels[i] = isHigh
				changed = true
			}
			if isHigh {
				sumHigh += v
				nHigh++
			} else {
				sumLow += v
				nLow++
			}
		}

		// both clusters stay non-empty: the min is always nearer the low
		// centroid and the max nearer the high one
		low, high = sumLow/float64(nLow), sumHigh/float64(nHigh)
		if !changed {
			break
		}
	}

	if low >= high {
		return nil, 0, 0, errors.New("clusters did not separate")
	}
	return labels, low, high, nil
}
