package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// RedisClient defines the subset of Redis operations the engine needs.
// This interface is compatible with github.com/redis/go-redis/v9 through a
// thin adapter returning the command types below.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	Del(ctx context.Context, keys ...string) RedisIntCmd
}

// RedisStatusCmd represents a Redis status command result.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd represents a Redis string command result.
type RedisStringCmd interface {
	Bytes() ([]byte, error)
	Err() error
}

// RedisIntCmd represents a Redis int command result.
type RedisIntCmd interface {
	Err() error
}

// ErrRedisNil is returned when a key doesn't exist in Redis.
// This should match redis.Nil from go-redis.
var ErrRedisNil = errors.New("redis: nil")

// RedisEngine is a Redis-backed engine.
// It's suitable for multi-process deployments sharing persisted state.
type RedisEngine struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	closed atomic.Bool
}

// RedisEngineOption configures RedisEngine behavior.
type RedisEngineOption func(*redisEngineConfig)

type redisEngineConfig struct {
	prefix string
	ttl    time.Duration
}

// WithRedisPrefix sets the key prefix.
// Default: "chunk:".
func WithRedisPrefix(prefix string) RedisEngineOption {
	return func(c *redisEngineConfig) {
		c.prefix = prefix
	}
}

// WithRedisTTL expires keys after d. Zero keeps keys forever.
func WithRedisTTL(d time.Duration) RedisEngineOption {
	return func(c *redisEngineConfig) {
		c.ttl = d
	}
}

// NewRedisEngine creates a new Redis-backed engine.
func NewRedisEngine(client RedisClient, opts ...RedisEngineOption) *RedisEngine {
	cfg := &redisEngineConfig{
		prefix: "chunk:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisEngine{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
	}
}

func (r *RedisEngine) key(key string) string {
	return r.prefix + key
}

// Set stores value under key.
func (r *RedisEngine) Set(ctx context.Context, key, value string) error {
	if r.closed.Load() {
		return ErrClosed
	}

	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return &OpError{Op: "set", Backend: "redis", Key: key, Err: err}
	}
	return nil
}

// Get returns the value stored under key.
func (r *RedisEngine) Get(ctx context.Context, key string) (string, bool, error) {
	if r.closed.Load() {
		return "", false, ErrClosed
	}

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if isRedisNil(err) {
			return "", false, nil
		}
		return "", false, &OpError{Op: "get", Backend: "redis", Key: key, Err: err}
	}
	return string(data), true, nil
}

// Remove deletes key.
func (r *RedisEngine) Remove(ctx context.Context, key string) error {
	if r.closed.Load() {
		return ErrClosed
	}

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return &OpError{Op: "remove", Backend: "redis", Key: key, Err: err}
	}
	return nil
}

// Close marks the engine as closed.
// Note: This does not close the underlying Redis client,
// as it may be shared with other components.
func (r *RedisEngine) Close() error {
	r.closed.Store(true)
	return nil
}

// Prefix returns the current key prefix.
// This is for testing/debugging purposes.
func (r *RedisEngine) Prefix() string {
	return r.prefix
}

// isRedisNil matches both ErrRedisNil and go-redis's own redis.Nil, which
// is a distinct value with the same message.
func isRedisNil(err error) bool {
	return errors.Is(err, ErrRedisNil) || err.Error() == ErrRedisNil.Error()
}

var (
	_ Engine = (*RedisEngine)(nil)
	_ Getter = (*RedisEngine)(nil)
)
