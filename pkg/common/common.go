package common

import "time"

// Reading is a single CPU utilization sample for one instance
type Reading struct {
	Instance string  `json:"instance"`
	Value    float64 `json:"value"`
}

// Alert is the payload handed to sinks when a cycle finds anomalies
type Alert struct {
	Cycle    string    `json:"cycle"`
	Policy   string    `json:"policy"`
	FiredAt  time.Time `json:"firedAt"`
	Readings []Reading `json:"readings"`
}
