package history

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const committedKeyPrefix = "checkscan:committed:"

// RedisStore shares history between stations scanning into the same
// service. Keys expire on their own.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) (*RedisStore, error) {
	if err := validateTTL(ttl); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Remember(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, name := range names {
		if name != "" {
			pipe.Set(ctx, committedKeyPrefix+name, "1", s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remember committed groups: %w", err)
	}
	return nil
}

func (s *RedisStore) Committed(ctx context.Context, names []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(names) == 0 {
		return out, nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = committedKeyPrefix + name
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read committed groups: %w", err)
	}
	for i, v := range values {
		if v != nil {
			out[names[i]] = true
		}
	}
	return out, nil
}
