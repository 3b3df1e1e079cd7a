package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session TTL 30 days; rate limit 300 requests / 60s per key.
const (
	SessionTTL      = 30 * 24 * 3600
	RateLimitWindow = 60
	RateLimitMax    = 300
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) SetSessionUser(ctx context.Context, sessionID, userID string) error {
	return c.cli.Set(ctx, "session:"+sessionID, userID, SessionTTL*time.Second).Err()
}

// GetSessionUser returns the user id for a session, or "" if the session is
// unknown or expired.
func (c *Client) GetSessionUser(ctx context.Context, sessionID string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.cli.Del(ctx, "session:"+sessionID).Err()
}

// CheckRateLimit counts requests under limit:{key}: max RateLimitMax per window.
func (c *Client) CheckRateLimit(ctx context.Context, key string) (allowed bool, err error) {
	k := "limit:" + key
	n, err := c.cli.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, k, RateLimitWindow*time.Second)
	}
	return n <= int64(RateLimitMax), nil
}

// AcquireLock takes lock:{name} via SET NX with a TTL.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return c.cli.SetNX(ctx, "lock:"+name, "1", ttl).Result()
}

func (c *Client) ReleaseLock(ctx context.Context, name string) error {
	return c.cli.Del(ctx, "lock:"+name).Err()
}
