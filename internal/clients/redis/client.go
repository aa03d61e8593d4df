package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hospitality-server/internal/config"
	"hospitality-server/internal/observability"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent
var ErrCacheMiss = errors.New("cache miss")

// Client wraps the Redis client with observability. A nil *Client is a
// valid disabled client: every method degrades gracefully.
type Client struct {
	client *redis.Client
	logger *observability.Logger
}

// NewClient creates a new Redis client
func NewClient(cfg config.RedisConfig, logger *observability.Logger) (*Client, error) {
	if !cfg.Enabled {
		logger.Info(context.Background(), "Redis is disabled, skipping client initialization")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info(ctx, "successfully connected to Redis",
		observability.Field{Key: "host", Value: cfg.Host},
		observability.Field{Key: "port", Value: cfg.Port},
		observability.Field{Key: "db", Value: cfg.DB},
	)

	return &Client{
		client: client,
		logger: logger,
	}, nil
}

// NewClientFromRedis wraps an existing go-redis client, used by tests with
// miniredis.
func NewClientFromRedis(client *redis.Client, logger *observability.Logger) *Client {
	return &Client{client: client, logger: logger}
}

// IsEnabled reports whether the wrapper holds a live connection
func (c *Client) IsEnabled() bool {
	return c != nil && c.client != nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Get retrieves a string value
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if !c.IsEnabled() {
		return "", ErrCacheMiss
	}
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set stores a string value with an expiration
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Incr atomically increments a counter and returns the new value
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	if !c.IsEnabled() {
		return 0, ErrCacheMiss
	}
	value, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment key %s: %w", key, err)
	}
	return value, nil
}

// Del removes a key
func (c *Client) Del(ctx context.Context, key string) error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}
