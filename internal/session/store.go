package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("not found")

// Store is a small key/value store for conversation checkpoints and tokens.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

const keyPrefix = "mortgage-agent:"

// RedisStore keeps values in Redis with a sliding TTL.
type RedisStore struct {
	client *redisv9.Client
	ttl    time.Duration
	ttls   map[string]time.Duration
}

// StoreOption customises a RedisStore.
type StoreOption func(*RedisStore)

// WithPrefixTTL gives keys starting with prefix their own TTL. Zero means no expiry.
func WithPrefixTTL(prefix string, ttl time.Duration) StoreOption {
	return func(s *RedisStore) {
		s.ttls[prefix] = ttl
	}
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, opts *redisv9.Options, ttl time.Duration, options ...StoreOption) (*RedisStore, error) {
	client := redisv9.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	s := &RedisStore{client: client, ttl: ttl, ttls: map[string]time.Duration{}}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) ttlFor(key string) time.Duration {
	for prefix, ttl := range s.ttls {
		if strings.HasPrefix(key, prefix) {
			return ttl
		}
	}
	return s.ttl
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, s.ttlFor(key)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore keeps values in process memory; checkpoints die with the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
