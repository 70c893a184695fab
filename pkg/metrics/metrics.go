package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle outcomes
const (
	OutcomeNormal     = "normal"
	OutcomeAlert      = "alert"
	OutcomeSuppressed = "suppressed"
	OutcomeError      = "error"
)

// Pipeline stages used as error labels
const (
	StageFetch    = "fetch"
	StageClassify = "classify"
	StageDedup    = "dedup"
	StageNotify   = "notify"
	StageJournal  = "journal"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpumon",
			Name:      "cycles_total",
			Help:      "Total number of monitoring cycles, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	stageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cpumon",
			Name:      "stage_errors_total",
			Help:      "Total number of failed pipeline stages, partitioned by stage.",
		},
		[]string{"stage"},
	)

	anomaliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cpumon",
			Name:      "anomalies_total",
			Help:      "Total number of anomalous instance readings detected.",
		},
	)

	notificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cpumon",
			Name:      "notifications_total",
			Help:      "Total number of alert notifications delivered.",
		},
	)

	instancesObserved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cpumon",
			Name:      "instances_observed",
			Help:      "Number of instances returned by the last successful fetch.",
		},
	)

	cycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cpumon",
			Name:      "cycle_seconds",
			Help:      "Monitoring cycle latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

// Register attaches cpumon collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		stageErrorsTotal,
		anomaliesTotal,
		notificationsTotal,
		instancesObserved,
		cycleDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records a finished cycle's duration and outcome label.
func ObserveCycle(duration time.Duration, outcome string) {
	cyclesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	cycleDurationSeconds.Observe(duration.Seconds())
}

// StageFailed counts a failed stage.
func StageFailed(stage string) {
	stageErrorsTotal.WithLabelValues(stage).Inc()
}

// Observed records the number of instances fetched.
func Observed(n int) {
	instancesObserved.Set(float64(n))
}

// Anomalies counts anomalous readings.
func Anomalies(n int) {
	anomaliesTotal.Add(float64(n))
}

// Notified counts a delivered notification.
func Notified() {
	notificationsTotal.Inc()
}
