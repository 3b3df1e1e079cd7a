package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessions(t *testing.T) {
	c := New()
	ctx := context.Background()

	uid, err := c.GetSessionUser(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, uid)

	require.NoError(t, c.SetSessionUser(ctx, "s1", "user-1"))
	uid, err = c.GetSessionUser(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "user-1", uid)

	require.NoError(t, c.DeleteSession(ctx, "s1"))
	uid, err = c.GetSessionUser(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, uid)
}

func TestRateLimit(t *testing.T) {
	c := New()
	ctx := context.Background()

	for i := 0; i < rateLimitMax; i++ {
		ok, err := c.CheckRateLimit(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := c.CheckRateLimit(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	// A different key has its own budget.
	ok, err = c.CheckRateLimit(ctx, "other")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAdvisoryLock(t *testing.T) {
	c := New()
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "scheduler", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.AcquireLock(ctx, "scheduler", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "held lock cannot be re-acquired")

	require.NoError(t, c.ReleaseLock(ctx, "scheduler"))
	ok, err = c.AcquireLock(ctx, "scheduler", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAdvisoryLockExpires(t *testing.T) {
	c := New()
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "scheduler", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	ok, err = c.AcquireLock(ctx, "scheduler", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lock is free")
}
