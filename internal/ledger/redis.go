package ledger

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// keyPrefix namespaces ledger keys in a shared Redis.
const keyPrefix = "vmrelay:processed:"

// RedisStore keeps markers in Redis so they survive restarts.
type RedisStore struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore connects to addr and verifies the connection with PING.
// ttl <= 0 means markers never expire.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStoreFromClient(client, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client. The store owns it from now on.
func NewRedisStoreFromClient(client *goredis.Client, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	n, err := s.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("ledger seen %q: %w", key, err)
	}
	return n > 0, nil
}

// Mark stores the processing time under key. SETNX keeps the first
// timestamp when a message is marked again.
func (s *RedisStore) Mark(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	stamp := s.now().UTC().Format(time.RFC3339)
	if err := s.client.SetNX(ctx, keyPrefix+key, stamp, s.ttl).Err(); err != nil {
		return fmt.Errorf("ledger mark %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
