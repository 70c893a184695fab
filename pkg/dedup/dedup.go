// Package dedup suppresses repeat alerts for an instance within a window.
//
// Suppression changes the observable behaviour of the monitor, which
// otherwise re-alerts every cycle while a condition persists, so it is only
// enabled when a positive window is configured.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

// Store tracks which instances were alerted within the window. Filter is
// read-only; Mark is called once the alert has actually been delivered.
type Store interface {
	Filter(ctx context.Context, readings []common.Reading) ([]common.Reading, error)
	Mark(ctx context.Context, readings []common.Reading) error
	Close() error
}

// New builds the store described by cfg. A zero window yields Nop.
func New(ctx context.Context, cfg config.DedupConfig) (Store, error) {
	if cfg.Window <= 0 {
		return Nop{}, nil
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.Window), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis, cfg.Window)
	default:
		return nil, fmt.Errorf("unsupported dedup backend: %s", cfg.Backend)
	}
}

// Nop passes every reading through
type Nop struct{}

func (Nop) Filter(_ context.Context, readings []common.Reading) ([]common.Reading, error) {
	return readings, nil
}

func (Nop) Mark(context.Context, []common.Reading) error { return nil }

func (Nop) Close() error { return nil }

// MemoryStore keeps alert expiry times in process memory
type MemoryStore struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
}

// NewMemoryStore creates an in-process store
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{
		window:  window,
		now:     time.Now,
		expires: make(map[string]time.Time),
	}
}

// Filter returns readings whose instance is not inside an active window
func (m *MemoryStore) Filter(_ context.Context, readings []common.Reading) ([]common.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]common.Reading, 0, len(readings))
	for _, r := range readings {
		if exp, ok := m.expires[r.Instance]; ok && now.Before(exp) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Mark starts a window for every reading's instance
func (m *MemoryStore) Mark(_ context.Context, readings []common.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, k)
		}
	}
	for _, r := range readings {
		m.expires[r.Instance] = now.Add(m.window)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
