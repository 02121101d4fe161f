package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_key.lua
var claimKeyScript string

//go:embed scripts/release_key.lua
var releaseKeyScript string

// Client wraps Redis for idempotency bookkeeping
type Client struct {
	rdb           *redis.Client
	claimScript   *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		claimScript:   redis.NewScript(claimKeyScript),
		releaseScript: redis.NewScript(releaseKeyScript),
	}, nil
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ClaimIdempotencyKey atomically stores value under key unless the key is
// already set. It returns the stored value when the key was already claimed
// and "" when this call claimed it.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) (string, error) {
	result, err := c.claimScript.Run(ctx, c.rdb, []string{key}, value, ttl.Milliseconds()).Result()
	if err != nil {
		return "", fmt.Errorf("claim key script failed: %w", err)
	}

	existing, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("unexpected script result type %T", result)
	}
	return existing, nil
}

// ReleaseIdempotencyKey forgets a claimed key so the request can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	if err := c.releaseScript.Run(ctx, c.rdb, []string{key}).Err(); err != nil {
		return fmt.Errorf("release key script failed: %w", err)
	}
	return nil
}
