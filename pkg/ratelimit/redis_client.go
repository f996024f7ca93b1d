package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis connection with health checks and graceful
// degradation. A missing or unreachable Redis never disables rate limiting;
// the limiter falls back to its in-memory window.
type RedisClient struct {
	client  *redis.Client
	enabled bool
	addr    string
}

// NewRedisClient connects to Redis, or returns a disabled client when no
// address is configured.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		slog.Warn("redis not configured, rate limiting will use in-memory window only")
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("redis ping failed, falling back to in-memory rate limiting", "addr", addr, "error", err)
		return &RedisClient{enabled: false, addr: addr}, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("redis rate-limit backend connected", "addr", addr)
	return &RedisClient{client: client, enabled: true, addr: addr}, nil
}

// NewRedisClientFrom wraps an existing connection; used by tests.
func NewRedisClientFrom(client *redis.Client) *RedisClient {
	return &RedisClient{client: client, enabled: client != nil}
}

// Client returns the underlying Redis client.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// IsEnabled reports whether Redis is connected and healthy.
func (r *RedisClient) IsEnabled() bool {
	return r.enabled
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	if r.enabled && r.client != nil {
		return r.client.Close()
	}
	return nil
}
