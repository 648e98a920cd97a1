package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisConfig configures Redis access for the overflow store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore is an alternative overflow store for hosts that already
// run a shared cache service.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis constructs a Redis-backed overflow store.
func OpenRedis(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "auditgraph:overflow"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis overflow store: %w", err)
	}

	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix)}, nil
}

// Put stores or replaces the value for a key.
func (s *RedisStore) Put(key string, value []byte) error {
	if err := s.client.Set(context.Background(), s.storeKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("put overflow key: %w", err)
	}
	return nil
}

// Get returns the stored value, or ErrNotFound.
func (s *RedisStore) Get(key string) ([]byte, error) {
	value, err := s.client.Get(context.Background(), s.storeKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get overflow key: %w", err)
	}
	return value, nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *RedisStore) Delete(key string) error {
	if err := s.client.Del(context.Background(), s.storeKey(key)).Err(); err != nil {
		return fmt.Errorf("delete overflow key: %w", err)
	}
	return nil
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) storeKey(key string) string {
	return s.prefix + ":" + key
}
