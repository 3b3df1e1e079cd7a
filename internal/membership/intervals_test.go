package membership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatwave/internal/model"
)

func ts(minute int) time.Time {
	return time.Date(2025, 6, 1, 10, minute, 0, 0, time.UTC)
}

func ev(userID string, kind model.MembershipEventKind, minute int) model.MembershipEvent {
	return model.MembershipEvent{ChatID: "chat-1", UserID: userID, Kind: kind, OccurredAt: ts(minute)}
}

func TestBuildIntervalsSingleStint(t *testing.T) {
	events := []model.MembershipEvent{
		ev("alice", model.MembershipJoin, 0),
		ev("alice", model.MembershipLeft, 30),
	}
	intervals := BuildIntervals(events, "alice", false)

	require.Len(t, intervals, 1)
	require.Equal(t, ts(0), intervals[0].Start)
	require.NotNil(t, intervals[0].End)
	require.Equal(t, ts(30), *intervals[0].End)
}

func TestBuildIntervalsRejoinProducesDisjointWindows(t *testing.T) {
	events := []model.MembershipEvent{
		ev("alice", model.MembershipJoin, 0),
		ev("alice", model.MembershipLeft, 10),
		ev("alice", model.MembershipJoin, 20),
		ev("alice", model.MembershipLeft, 30),
		ev("alice", model.MembershipJoin, 40),
	}
	intervals := BuildIntervals(events, "alice", true)

	require.Len(t, intervals, 3)
	require.Equal(t, ts(10), *intervals[0].End)
	require.Equal(t, ts(20), intervals[1].Start)
	require.Equal(t, ts(30), *intervals[1].End)
	require.Equal(t, ts(40), intervals[2].Start)
	require.Nil(t, intervals[2].End, "current stint stays open")

	// The gap between stints is not covered.
	require.False(t, InAnyInterval(intervals, ts(15)))
	require.True(t, InAnyInterval(intervals, ts(5)))
	require.True(t, InAnyInterval(intervals, ts(25)))
	require.True(t, InAnyInterval(intervals, ts(50)))
}

func TestBuildIntervalsIgnoresOtherUsers(t *testing.T) {
	events := []model.MembershipEvent{
		ev("bob", model.MembershipJoin, 0),
		ev("alice", model.MembershipJoin, 10),
		ev("bob", model.MembershipLeft, 20),
	}
	intervals := BuildIntervals(events, "alice", true)

	require.Len(t, intervals, 1)
	require.Equal(t, ts(10), intervals[0].Start)
	require.Nil(t, intervals[0].End)
}

func TestBuildIntervalsLeftWithoutJoinStartsAtEpoch(t *testing.T) {
	events := []model.MembershipEvent{
		ev("alice", model.MembershipLeft, 20),
	}
	intervals := BuildIntervals(events, "alice", false)

	require.Len(t, intervals, 1)
	require.True(t, intervals[0].Start.IsZero())
	require.Equal(t, ts(20), *intervals[0].End)
	require.True(t, InAnyInterval(intervals, ts(5)))
	require.False(t, InAnyInterval(intervals, ts(25)))
}

func TestBuildIntervalsCurrentMemberWithoutOpenWindow(t *testing.T) {
	// Log says the user left, but chat_members says they are in. Synthesize a
	// window from the latest recorded join.
	events := []model.MembershipEvent{
		ev("alice", model.MembershipJoin, 0),
		ev("alice", model.MembershipLeft, 10),
	}
	intervals := BuildIntervals(events, "alice", true)

	require.Len(t, intervals, 2)
	require.Equal(t, ts(0), intervals[1].Start)
	require.Nil(t, intervals[1].End)
}

func TestBuildIntervalsCurrentMemberWithNoEvents(t *testing.T) {
	intervals := BuildIntervals(nil, "alice", true)

	require.Len(t, intervals, 1)
	require.True(t, intervals[0].Start.IsZero())
	require.Nil(t, intervals[0].End)
}

func TestBuildIntervalsNonMemberWithNoEvents(t *testing.T) {
	require.Empty(t, BuildIntervals(nil, "alice", false))
}

func TestBuildIntervalsUnorderedInput(t *testing.T) {
	events := []model.MembershipEvent{
		ev("alice", model.MembershipLeft, 30),
		ev("alice", model.MembershipJoin, 0),
	}
	intervals := BuildIntervals(events, "alice", false)

	require.Len(t, intervals, 1)
	require.Equal(t, ts(0), intervals[0].Start)
	require.Equal(t, ts(30), *intervals[0].End)
}

func TestIntervalContainsIsInclusive(t *testing.T) {
	end := ts(30)
	iv := model.Interval{Start: ts(0), End: &end}

	require.True(t, iv.Contains(ts(0)))
	require.True(t, iv.Contains(ts(30)))
	require.False(t, iv.Contains(ts(31)))
	require.False(t, iv.Contains(ts(0).Add(-time.Second)))
}
