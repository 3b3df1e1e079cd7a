package memory

import (
	"context"
	"sync"
	"time"
)

const (
	sessionTTL      = 30 * 24 * time.Hour
	rateLimitWindow = 60 * time.Second
	rateLimitMax    = 300
)

type item struct {
	val string
	exp time.Time
}

// Client is the in-memory Store used for -dev runs and tests. Single process
// only: its advisory lock cannot coordinate across replicas.
type Client struct {
	mu       sync.RWMutex
	sessions map[string]item
	limit    map[string][]time.Time
	locks    map[string]time.Time
}

func New() *Client {
	return &Client{
		sessions: make(map[string]item),
		limit:    make(map[string][]time.Time),
		locks:    make(map[string]time.Time),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSessionUser(ctx context.Context, sessionID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = item{val: userID, exp: time.Now().Add(sessionTTL)}
	return nil
}

func (c *Client) GetSessionUser(ctx context.Context, sessionID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[sessionID]
	if !ok || time.Now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
	return nil
}

func (c *Client) CheckRateLimit(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cut := now.Add(-rateLimitWindow)
	var kept []time.Time
	for _, t := range c.limit[key] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rateLimitMax {
		c.limit[key] = kept
		return false, nil
	}
	kept = append(kept, now)
	c.limit[key] = kept
	return true, nil
}

func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if exp, ok := c.locks[name]; ok && time.Now().Before(exp) {
		return false, nil
	}
	c.locks[name] = time.Now().Add(ttl)
	return true, nil
}

func (c *Client) ReleaseLock(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, name)
	return nil
}
