// Package redis provides the cross-process locks the consistency validator
// takes before applying a correction, so concurrent validators never repair
// the same records twice.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for correction locking.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client and verifies the connection.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func correctionKey(kind string, recordIDs []string) string {
	return fmt.Sprintf("correction:%s:%s", kind, strings.Join(recordIDs, ","))
}

// AcquireCorrectionLock attempts to claim a correction for the given issue.
// Returns false when another process holds it.
func (c *Client) AcquireCorrectionLock(ctx context.Context, kind string, recordIDs []string, ttl time.Duration) (bool, error) {
	key := correctionKey(kind, recordIDs)
	ok, err := c.rdb.SetNX(ctx, key, "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseCorrectionLock releases a held correction lock.
func (c *Client) ReleaseCorrectionLock(ctx context.Context, kind string, recordIDs []string) error {
	key := correctionKey(kind, recordIDs)
	return c.rdb.Del(ctx, key).Err()
}
