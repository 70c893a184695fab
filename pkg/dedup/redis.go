package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

const defaultKeyPrefix = "cpumon:alerted:"

// RedisStore keeps alert windows as expiring redis keys, so suppression
// survives restarts and is shared between monitor replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedisStore connects to redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, window time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return newRedisStore(client, cfg.KeyPrefix, window), nil
}

func newRedisStore(client *redis.Client, prefix string, window time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, window: window}
}

// Filter drops readings whose instance key still exists
func (s *RedisStore) Filter(ctx context.Context, readings []common.Reading) ([]common.Reading, error) {
	if len(readings) == 0 {
		return readings, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(readings))
	for i, r := range readings {
		cmds[i] = pipe.Exists(ctx, s.prefix+r.Instance)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis dedup: %w", err)
	}

	out := make([]common.Reading, 0, len(readings))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			out = append(out, readings[i])
		}
	}
	return out, nil
}

// Mark sets an expiring key per instance
func (s *RedisStore) Mark(ctx context.Context, readings []common.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, r := range readings {
		pipe.Set(ctx, s.prefix+r.Instance, r.Value, s.window)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis dedup mark: %w", err)
	}
	return nil
}

// Close closes the redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
