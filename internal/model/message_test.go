package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEffectiveTime(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	fireAt := created.Add(2 * time.Hour)

	live := Message{CreatedAt: created}
	require.Equal(t, created, live.EffectiveTime())

	pending := Message{CreatedAt: created, IsScheduled: true, ScheduledFor: &fireAt}
	require.Equal(t, created, pending.EffectiveTime(), "pending scheduled keeps creation time")

	fired := Message{CreatedAt: created, IsScheduled: true, ScheduledSent: true, ScheduledFor: &fireAt}
	require.Equal(t, fireAt, fired.EffectiveTime(), "fired scheduled reorders to fire time")
}

func TestIsDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.True(t, (&Message{IsScheduled: true, ScheduledFor: &past}).IsDue(now))
	require.True(t, (&Message{IsScheduled: true, ScheduledFor: &now}).IsDue(now))
	require.False(t, (&Message{IsScheduled: true, ScheduledFor: &future}).IsDue(now))
	require.False(t, (&Message{IsScheduled: true, ScheduledSent: true, ScheduledFor: &past}).IsDue(now))
	require.False(t, (&Message{ScheduledFor: &past}).IsDue(now))
}

func TestReadByAll(t *testing.T) {
	m := Message{ReadBy: []string{"alice", "bob"}}

	require.True(t, m.ReadByAll([]string{"alice", "bob"}))
	require.True(t, m.ReadByAll([]string{"alice"}), "a reader who left no longer blocks completeness")
	require.False(t, m.ReadByAll([]string{"alice", "bob", "carol"}), "a member added later reopens it")
	require.False(t, m.ReadByAll(nil), "empty membership never counts as fully read")
}
