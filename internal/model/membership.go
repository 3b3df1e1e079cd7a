package model

import "time"

type MembershipEventKind string

const (
	MembershipJoin MembershipEventKind = "join"
	MembershipLeft MembershipEventKind = "left"
)

// MembershipEvent is one record of the ordered group membership log. The log is
// the source of truth for reconstructing who could see what and when; the
// chat_members table only reflects the current state.
type MembershipEvent struct {
	ID         int64               `json:"id"`
	ChatID     string              `json:"chat_id"`
	UserID     string              `json:"user_id"`
	Kind       MembershipEventKind `json:"kind"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// Interval is a derived time window during which a user was a group member.
// A nil End means the user is still a member.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the interval (inclusive on both ends).
func (iv Interval) Contains(t time.Time) bool {
	if t.Before(iv.Start) {
		return false
	}
	return iv.End == nil || !t.After(*iv.End)
}
