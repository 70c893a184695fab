package dedup

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

func TestMemoryStore_SuppressesWithinWindow(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore(10 * time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	first := []common.Reading{{Instance: "a", Value: 91}, {Instance: "b", Value: 95}}
	got, _ := m.Filter(ctx, first)
	if !reflect.DeepEqual(got, first) {
		t.Fatalf("first Filter() = %+v, want all", got)
	}
	if err := m.Mark(ctx, got); err != nil {
		t.Fatal(err)
	}

	now = now.Add(5 * time.Minute)
	got, _ = m.Filter(ctx, []common.Reading{{Instance: "a", Value: 92}, {Instance: "c", Value: 99}})
	want := []common.Reading{{Instance: "c", Value: 99}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("second Filter() = %+v, want %+v", got, want)
	}
	if err := m.Mark(ctx, got); err != nil {
		t.Fatal(err)
	}

	// a and b expire at 12:10, c at 12:15
	now = now.Add(5 * time.Minute)
	got, _ = m.Filter(ctx, []common.Reading{{Instance: "a", Value: 93}, {Instance: "c", Value: 99}})
	want = []common.Reading{{Instance: "a", Value: 93}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("third Filter() = %+v, want %+v", got, want)
	}
}

func TestMemoryStore_FilterWithoutMark(t *testing.T) {
	m := NewMemoryStore(time.Hour)
	ctx := context.Background()
	in := []common.Reading{{Instance: "a", Value: 99}}

	for i := 0; i < 3; i++ {
		got, err := m.Filter(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, in) {
			t.Fatalf("Filter() call %d = %+v, want %+v", i, got, in)
		}
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.DedupConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(Nop); !ok {
		t.Errorf("New(window=0) = %T, want Nop", s)
	}
	in := []common.Reading{{Instance: "a", Value: 99}}
	for i := 0; i < 2; i++ {
		if got, _ := s.Filter(ctx, in); len(got) != 1 {
			t.Errorf("Nop.Filter() dropped readings on call %d", i)
		}
	}

	s, err = New(ctx, config.DedupConfig{Window: time.Minute, Backend: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("New(memory) = %T, want *MemoryStore", s)
	}

	if _, err := New(ctx, config.DedupConfig{Window: time.Minute, Backend: "etcd"}); err == nil {
		t.Error("New() should reject unknown backends")
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, config.RedisConfig{Addr: "127.0.0.1:1"}, time.Minute)
	if err == nil {
		t.Fatal("NewRedisStore() should fail when redis is unreachable")
	}
}
