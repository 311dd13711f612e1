package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"sociofi/internal/config"
)

// Client wraps go-redis client to centralize configuration.
type Client struct {
	inner *redis.Client
}

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

// NewRedisClient creates the redis client from app config and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	return Dial(ctx, &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Dial connects with explicit options. Tests use it with TEST_REDIS_ADDR.
func Dial(ctx context.Context, opts *redis.Options) (*Client, error) {
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &Client{inner: client}, nil
}

// Set stores a key with TTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Set(ctx, key, value, ttl).Err()
}

// Get fetches the key as string.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.inner == nil {
		return "", errNotInitialized
	}
	return c.inner.Get(ctx, key).Result()
}

// Del removes provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Del(ctx, keys...).Err()
}

// Expire refreshes the ttl of an existing key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Expire(ctx, key, ttl).Err()
}

// TTL returns key ttl.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	if c == nil || c.inner == nil {
		return 0, errNotInitialized
	}
	return c.inner.TTL(ctx, key).Result()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
