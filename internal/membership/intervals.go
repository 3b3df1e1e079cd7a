// Package membership reconstructs group membership windows from the membership
// event log and filters message history by them. It is pure computation over
// model types; it never mutates stored data.
package membership

import (
	"sort"
	"time"

	"github.com/chatwave/internal/model"
)

// BuildIntervals derives the time windows during which userID was a member,
// from that user's join/left events. isParticipant is whether the user is
// currently listed in chat_members.
//
// The log is walked in time order: a join opens a window, a left closes it.
// Malformed history is tolerated: a left with no prior join closes a window
// that is assumed to have started at the epoch, and a current participant with
// no open window gets one synthesized (from the latest recorded join, or the
// epoch when there is no event data at all).
func BuildIntervals(events []model.MembershipEvent, userID string, isParticipant bool) []model.Interval {
	own := make([]model.MembershipEvent, 0, len(events))
	for _, ev := range events {
		if ev.UserID == userID {
			own = append(own, ev)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		return own[i].OccurredAt.Before(own[j].OccurredAt)
	})

	var (
		intervals  []model.Interval
		open       bool
		start      time.Time
		latestJoin *time.Time
	)
	for _, ev := range own {
		switch ev.Kind {
		case model.MembershipJoin:
			t := ev.OccurredAt
			latestJoin = &t
			if !open {
				open = true
				start = ev.OccurredAt
			}
		case model.MembershipLeft:
			end := ev.OccurredAt
			if open {
				intervals = append(intervals, model.Interval{Start: start, End: &end})
				open = false
			} else {
				// A left with no recorded join: treat the user as having been
				// a member since the epoch until this point.
				intervals = append(intervals, model.Interval{Start: time.Time{}, End: &end})
			}
		}
	}
	if open {
		intervals = append(intervals, model.Interval{Start: start})
	}

	if isParticipant && !open {
		// Current member but the log yielded no open window (missing data).
		if latestJoin != nil {
			intervals = append(intervals, model.Interval{Start: *latestJoin})
		} else {
			// No usable join data: allow everything.
			intervals = append(intervals, model.Interval{Start: time.Time{}})
		}
	}
	return intervals
}

// InAnyInterval reports whether t falls within any of the given windows.
func InAnyInterval(intervals []model.Interval, t time.Time) bool {
	for _, iv := range intervals {
		if iv.Contains(t) {
			return true
		}
	}
	return false
}
