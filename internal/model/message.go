package model

import "time"

type ContentType string

const (
	ContentTypeText   ContentType = "text"
	ContentTypeImage  ContentType = "image"
	ContentTypeFile   ContentType = "file"
	ContentTypeVoice  ContentType = "voice"
	ContentTypeSystem ContentType = "system"
)

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Message is a single chat message. Per-message status is meaningful for personal
// chats only; group chats accumulate ReadBy instead.
type Message struct {
	ID          string        `json:"id"`
	ChatID      string        `json:"chat_id"`
	SenderID    string        `json:"sender_id"`
	Content     string        `json:"content"`
	ContentType ContentType   `json:"content_type"`
	Status      MessageStatus `json:"status"`

	// Scheduling. Invariant: ScheduledSent implies IsScheduled.
	IsScheduled   bool       `json:"is_scheduled,omitempty"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
	ScheduledSent bool       `json:"scheduled_sent,omitempty"`

	// Per-viewer visibility sets. HiddenFor is the per-user soft delete;
	// ExcludedUsers hides system notices from specific users outright.
	HiddenFor     []string `json:"-"`
	ExcludedUsers []string `json:"-"`

	ReadBy      []string     `json:"read_by,omitempty"`
	ReplyToIDs  []string     `json:"reply_to_ids,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`

	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	Sender  *UserPublic `json:"sender,omitempty"`
	ReplyTo []*Message  `json:"reply_to,omitempty"`
}

// EffectiveTime is the timestamp used for ordering and visibility: the fire time
// for a scheduled message that has been sent, the creation time otherwise.
func (m *Message) EffectiveTime() time.Time {
	if m.IsScheduled && m.ScheduledSent && m.ScheduledFor != nil {
		return *m.ScheduledFor
	}
	return m.CreatedAt
}

// IsDue reports whether a scheduled message should be fired at the given time.
func (m *Message) IsDue(now time.Time) bool {
	return m.IsScheduled && !m.ScheduledSent && m.ScheduledFor != nil && !m.ScheduledFor.After(now)
}

// ReadByAll reports whether every id in memberIDs appears in the message's read
// set. Completeness is checked against current members only: a member who left
// no longer blocks it, a member added later reopens it.
func (m *Message) ReadByAll(memberIDs []string) bool {
	if len(memberIDs) == 0 {
		return false
	}
	read := make(map[string]struct{}, len(m.ReadBy))
	for _, id := range m.ReadBy {
		read[id] = struct{}{}
	}
	for _, id := range memberIDs {
		if _, ok := read[id]; !ok {
			return false
		}
	}
	return true
}

type Attachment struct {
	ID       string `json:"id"`
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type,omitempty"`
}

type Reaction struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type PinnedMessage struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	PinnedBy  string    `json:"pinned_by"`
	PinnedAt  time.Time `json:"pinned_at"`
	Message   *Message  `json:"message,omitempty"`
}

type StarredMessage struct {
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id"`
	StarredAt time.Time `json:"starred_at"`
	Message   *Message  `json:"message,omitempty"`
}
