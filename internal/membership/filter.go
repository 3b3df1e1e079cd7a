package membership

import (
	"sort"

	"github.com/chatwave/internal/model"
)

// FilterVisible returns the messages userID may see, in this order of rules:
// per-viewer soft delete, explicit exclusion, pending scheduled messages
// (visible only through the sender's scheduled listing), and — for group
// chats — the membership windows. A user with zero windows sees nothing.
func FilterVisible(msgs []model.Message, userID string, isGroup bool, intervals []model.Interval) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		if containsID(m.HiddenFor, userID) {
			continue
		}
		if containsID(m.ExcludedUsers, userID) {
			continue
		}
		if m.IsScheduled && !m.ScheduledSent {
			continue
		}
		if isGroup && !InAnyInterval(intervals, m.EffectiveTime()) {
			continue
		}
		out = append(out, *m)
	}
	return out
}

// SortByEffectiveTime orders messages ascending by their effective timestamp.
// Scheduler-fired messages sort by fire time, so they interleave with live
// messages sent around the fire moment rather than by insertion order.
func SortByEffectiveTime(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].EffectiveTime().Before(msgs[j].EffectiveTime())
	})
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
