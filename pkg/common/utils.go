package common

import (
	"fmt"
	"math"
	"strconv"
)

// FormatValue renders a utilization value with at most two decimals
func FormatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// ValidateReadings rejects NaN and infinite values
func ValidateReadings(readings []Reading) error {
	for _, r := range readings {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return fmt.Errorf("instance %q has non-numeric value %v", r.Instance, r.Value)
		}
	}
	return nil
}
