package membership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatwave/internal/model"
)

func msg(id string, minute int) model.Message {
	return model.Message{
		ID:          id,
		ChatID:      "chat-1",
		SenderID:    "bob",
		Content:     "hi",
		ContentType: model.ContentTypeText,
		Status:      model.MessageStatusSent,
		CreatedAt:   ts(minute),
	}
}

func ids(msgs []model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestFilterVisibleHiddenAndExcluded(t *testing.T) {
	hidden := msg("m1", 1)
	hidden.HiddenFor = []string{"alice"}
	excluded := msg("m2", 2)
	excluded.ExcludedUsers = []string{"alice"}
	plain := msg("m3", 3)

	intervals := []model.Interval{{Start: time.Time{}}}
	visible := FilterVisible([]model.Message{hidden, excluded, plain}, "alice", true, intervals)

	require.Equal(t, []string{"m3"}, ids(visible))

	// Another viewer sees everything.
	visible = FilterVisible([]model.Message{hidden, excluded, plain}, "carol", true, intervals)
	require.Equal(t, []string{"m1", "m2", "m3"}, ids(visible))
}

func TestFilterVisiblePendingScheduledHiddenFromEveryone(t *testing.T) {
	fireAt := ts(60)
	pending := msg("m1", 1)
	pending.IsScheduled = true
	pending.ScheduledFor = &fireAt

	// Hidden even from the sender in regular history.
	intervals := []model.Interval{{Start: time.Time{}}}
	require.Empty(t, FilterVisible([]model.Message{pending}, "bob", false, intervals))
	require.Empty(t, FilterVisible([]model.Message{pending}, "alice", true, intervals))

	// Once fired it appears, positioned by fire time.
	fired := pending
	fired.ScheduledSent = true
	visible := FilterVisible([]model.Message{fired}, "alice", true, intervals)
	require.Equal(t, []string{"m1"}, ids(visible))
	require.Equal(t, fireAt, visible[0].EffectiveTime())
}

func TestFilterVisibleGroupMembershipWindows(t *testing.T) {
	events := []model.MembershipEvent{
		ev("alice", model.MembershipJoin, 10),
		ev("alice", model.MembershipLeft, 20),
	}
	intervals := BuildIntervals(events, "alice", false)

	before := msg("m1", 5)
	during := msg("m2", 15)
	boundary := msg("m3", 20)
	after := msg("m4", 25)

	visible := FilterVisible([]model.Message{before, during, boundary, after}, "alice", true, intervals)
	require.Equal(t, []string{"m2", "m3"}, ids(visible))
}

func TestFilterVisiblePersonalChatSkipsWindowCheck(t *testing.T) {
	m := msg("m1", 5)
	visible := FilterVisible([]model.Message{m}, "alice", false, nil)
	require.Equal(t, []string{"m1"}, ids(visible))
}

func TestFilterVisibleNoWindowsSeesNothingInGroup(t *testing.T) {
	m := msg("m1", 5)
	require.Empty(t, FilterVisible([]model.Message{m}, "alice", true, nil))
}

func TestFilterVisibleFiredScheduledUsesFireTimeForWindows(t *testing.T) {
	events := []model.MembershipEvent{
		ev("alice", model.MembershipJoin, 10),
		ev("alice", model.MembershipLeft, 20),
	}
	intervals := BuildIntervals(events, "alice", false)

	// Created before alice joined, fired while she was a member.
	fireAt := ts(15)
	fired := msg("m1", 2)
	fired.IsScheduled = true
	fired.ScheduledSent = true
	fired.ScheduledFor = &fireAt

	visible := FilterVisible([]model.Message{fired}, "alice", true, intervals)
	require.Equal(t, []string{"m1"}, ids(visible))

	// Created during the window but fired after she left: invisible.
	lateFire := ts(25)
	fired2 := msg("m2", 15)
	fired2.IsScheduled = true
	fired2.ScheduledSent = true
	fired2.ScheduledFor = &lateFire

	require.Empty(t, FilterVisible([]model.Message{fired2}, "alice", true, intervals))
}

func TestSortByEffectiveTimeInterleavesFiredScheduled(t *testing.T) {
	early := msg("m1", 10)
	late := msg("m2", 30)

	// Created first but fired between the two live messages.
	fireAt := ts(20)
	fired := msg("m3", 1)
	fired.IsScheduled = true
	fired.ScheduledSent = true
	fired.ScheduledFor = &fireAt

	msgs := []model.Message{fired, late, early}
	SortByEffectiveTime(msgs)
	require.Equal(t, []string{"m1", "m3", "m2"}, ids(msgs))
}
