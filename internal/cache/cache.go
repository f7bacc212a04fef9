package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Backend names a summary cache implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

const (
	defaultSize = 256
	defaultTTL  = 15 * time.Minute

	// redisPrefix namespaces our keys on a shared Redis.
	redisPrefix = "demandcast:summary:"
)

// SummaryCache stores serialized summaries by key. Invalidate drops every
// entry; it runs after a pipeline stage replaces a table the summaries were
// computed from, when any cached figure may be stale.
type SummaryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context) error
	Close() error
}

// Options configure cache construction.
type Options struct {
	Backend   Backend
	Size      int
	TTL       time.Duration
	RedisAddr string
}

// New creates the configured backend. The backend is an explicit choice:
// there is no probe-and-fallback, a misconfigured Redis should fail loudly
// rather than silently degrade to per-process caching.
func New(ctx context.Context, opts Options) (SummaryCache, error) {
	if opts.Size <= 0 {
		opts.Size = defaultSize
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	switch opts.Backend {
	case BackendMemory, "":
		return newMemoryCache(opts.Size, opts.TTL)
	case BackendRedis:
		return newRedisCache(ctx, opts.RedisAddr, opts.TTL)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", opts.Backend)
	}
}

type memoryCache struct {
	lru *lruWithTTL[string, []byte]
}

func newMemoryCache(size int, ttl time.Duration) (*memoryCache, error) {
	lru, err := newLRUWithTTL[string, []byte](size, ttl)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &memoryCache{lru: lru}, nil
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte) error {
	c.lru.Set(key, value)
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context) error {
	c.lru.Purge()
	return nil
}

func (c *memoryCache) Close() error {
	c.lru.Purge()
	return nil
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisCache(ctx context.Context, addr string, ttl time.Duration) (*redisCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("cache: redis backend selected but no address configured")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping %s: %w", addr, err)
	}
	return &redisCache{client: client, ttl: ttl}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, redisPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}
	return v, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, redisPrefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Invalidate deletes every key under our prefix. SCAN rather than KEYS: the
// Redis may be shared and must not be blocked on a large keyspace.
func (c *redisCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache: redis del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: redis scan: %w", err)
	}
	return nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
