package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/millisami/flow-name-service/internal/platform/config"
)

// Client wraps go-redis for the record cache. The only consumer is the
// name-record cache, so the surface stays small.
type Client struct {
	*redis.Client
}

// New dials Redis and verifies the connection with a ping.
// Returns nil if no URL is configured (record cache falls back in-process).
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health pings the server, for readiness checks.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
