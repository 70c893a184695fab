package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/dedup"
	"github.com/meiking/cpu-anomaly-monitor/pkg/detector"
	"github.com/meiking/cpu-anomaly-monitor/pkg/metrics"
	"github.com/meiking/cpu-anomaly-monitor/pkg/sink"
)

// Fetcher returns the current CPU readings. prometheus.Client implements it.
type Fetcher interface {
	FetchCPU(ctx context.Context) ([]common.Reading, error)
}

// State is a step of the monitoring cycle
type State string

const (
	StateFetching    State = "fetching"
	StateClassifying State = "classifying"
	StateNotifying   State = "notifying"
	StateIdle        State = "idle"
	StateSleeping    State = "sleeping"
)

// CycleResult summarizes one fetch -> classify -> notify pass
type CycleResult struct {
	ID        string           `json:"id"`
	StartedAt time.Time        `json:"startedAt"`
	Duration  time.Duration    `json:"duration"`
	Instances int              `json:"instances"`
	Anomalies []common.Reading `json:"anomalies"`
	Notified  bool             `json:"notified"`

	// FailedStage and Err are set when the cycle was cut short
	FailedStage string `json:"failedStage,omitempty"`
	Err         error  `json:"-"`
	Error       string `json:"error,omitempty"`
}

// Processor runs the monitoring cycle
type Processor struct {
	fetcher    Fetcher
	classifier detector.Classifier
	notifier   sink.Sink
	journal    sink.Sink
	dedup      dedup.Store
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	mu   sync.RWMutex
	last *CycleResult
}

// Option configures a Processor
type Option func(*Processor)

// WithJournal records every delivered alert in s
func WithJournal(s sink.Sink) Option {
	return func(p *Processor) { p.journal = s }
}

// WithDedup filters anomalies through store before notifying
func WithDedup(store dedup.Store) Option {
	return func(p *Processor) { p.dedup = store }
}

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates a new monitoring processor
func NewProcessor(fetcher Fetcher, classifier detector.Classifier, notifier sink.Sink, opts ...Option) *Processor {
	p := &Processor{
		fetcher:    fetcher,
		classifier: classifier,
		notifier:   notifier,
		dedup:      dedup.Nop{},
		logger:     slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes a cycle immediately and then once per interval until ctx is
// cancelled. Stage failures are logged and never stop the loop.
func (p *Processor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}

	p.logger.Info("monitor started", "interval", interval, "policy", p.classifier.Name(), "notifier", p.notifier.Name())

	p.RunCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.logger.Debug("cycle state", "state", StateSleeping, "next_in", interval)
		select {
		case <-ctx.Done():
			p.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle performs one fetch -> classify -> (notify) pass. Errors are
// reported in the result, not returned.
func (p *Processor) RunCycle(ctx context.Context) CycleResult {
	res := CycleResult{ID: p.newID(), StartedAt: p.now()}
	log := p.logger.With("cycle", res.ID)

	outcome := p.cycle(ctx, log, &res)

	res.Duration = p.now().Sub(res.StartedAt)
	if res.Err != nil {
		res.Error = res.Err.Error()
		metrics.StageFailed(res.FailedStage)
		log.Error("cycle failed", "stage", res.FailedStage, "err", res.Err)
	}
	metrics.ObserveCycle(res.Duration, outcome)

	p.mu.Lock()
	last := res
	p.last = &last
	p.mu.Unlock()

	return res
}

func (p *Processor) cycle(ctx context.Context, log *slog.Logger, res *CycleResult) string {
	log.Debug("cycle state", "state", StateFetching)
	readings, err := p.fetcher.FetchCPU(ctx)
	if err != nil {
		res.FailedStage, res.Err = metrics.StageFetch, err
		return metrics.OutcomeError
	}
	res.Instances = len(readings)
	metrics.Observed(len(readings))

	log.Debug("cycle state", "state", StateClassifying, "instances", len(readings))
	anomalies, err := p.classifier.Classify(readings)
	if err != nil {
		res.FailedStage, res.Err = metrics.StageClassify, err
		return metrics.OutcomeError
	}
	res.Anomalies = anomalies

	if len(anomalies) == 0 {
		log.Debug("cycle state", "state", StateIdle)
		log.Info("system normal", "instances", len(readings))
		return metrics.OutcomeNormal
	}
	metrics.Anomalies(len(anomalies))

	toSend, err := p.dedup.Filter(ctx, anomalies)
	if err != nil {
		// alert anyway rather than lose it
		metrics.StageFailed(metrics.StageDedup)
		log.Warn("dedup failed, alerting on all anomalies", "err", err)
		toSend = anomalies
	}
	if len(toSend) == 0 {
		log.Info("anomalies suppressed within dedup window", "anomalies", len(anomalies))
		return metrics.OutcomeSuppressed
	}

	log.Debug("cycle state", "state", StateNotifying, "anomalies", len(toSend))
	alert := common.Alert{
		Cycle:    res.ID,
		Policy:   p.classifier.Name(),
		FiredAt:  p.now(),
		Readings: toSend,
	}
	if err := p.notifier.Write(ctx, alert); err != nil {
		res.FailedStage, res.Err = metrics.StageNotify, err
		return metrics.OutcomeError
	}
	res.Notified = true
	metrics.Notified()
	log.Info("alert sent", "notifier", p.notifier.Name(), "anomalies", len(toSend))

	// only delivered alerts open a suppression window
	if err := p.dedup.Mark(ctx, toSend); err != nil {
		metrics.StageFailed(metrics.StageDedup)
		log.Warn("dedup mark failed", "err", err)
	}

	if p.journal != nil {
		if err := p.journal.Write(ctx, alert); err != nil {
			metrics.StageFailed(metrics.StageJournal)
			log.Warn("journal write failed", "journal", p.journal.Name(), "err", err)
		}
	}

	return metrics.OutcomeAlert
}

// Status returns the result of the most recent cycle, if any
func (p *Processor) Status() (CycleResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return CycleResult{}, false
	}
	return *p.last, true
}
