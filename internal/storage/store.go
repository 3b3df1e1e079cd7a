package storage

import (
	"context"
	"time"
)

// Store holds short-lived coordination state: session lookups for the auth
// middleware, API rate limiting, and the scheduler's advisory lock.
// Implementations: redis.Client, memory.Client (for -dev without Redis).
type Store interface {
	SetSessionUser(ctx context.Context, sessionID, userID string) error
	GetSessionUser(ctx context.Context, sessionID string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error

	CheckRateLimit(ctx context.Context, key string) (allowed bool, err error)

	// AcquireLock takes a named advisory lock with a TTL; it returns false if
	// another holder has it. Best effort: used to keep multiple scheduler
	// replicas from firing the same tick, not for correctness-critical mutual
	// exclusion (the scheduled_sent claim stays authoritative).
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error

	Close() error
}
