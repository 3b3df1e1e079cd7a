package ws

import (
	"time"
)

type EventType string

const (
	// EventMessageReceived is the single delivery event: live sends and
	// scheduler-fired messages share it so clients need no special-casing.
	EventMessageReceived EventType = "message_received"

	EventNewMessage       EventType = "new_message"
	EventSubscribe        EventType = "subscribe"
	EventUnsubscribe      EventType = "unsubscribe"
	EventTyping           EventType = "typing"
	EventMessageRead      EventType = "message_read"
	EventMessageDelivered EventType = "message_delivered"
	EventMessageEdited    EventType = "message_edited"
	EventMessageDeleted   EventType = "message_deleted"
	EventReactionSet      EventType = "reaction_set"
	EventReactionRemoved  EventType = "reaction_removed"
	EventMessagePinned    EventType = "message_pinned"
	EventMessageUnpinned  EventType = "message_unpinned"
	EventChatCreated      EventType = "chat_created"
	EventChatUpdated      EventType = "chat_updated"
	EventMemberAdded      EventType = "member_added"
	EventMemberRemoved    EventType = "member_removed"
	EventUserOnline       EventType = "user_online"
	EventUserOffline      EventType = "user_offline"
	EventError            EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type    EventType `json:"type"`
	ChatID  string    `json:"chat_id,omitempty"`
	Content string    `json:"content,omitempty"`

	// For delivery/read/edit/delete/reactions
	MessageID string `json:"message_id,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// MessageEditedPayload is broadcast when a message is edited.
type MessageEditedPayload struct {
	MessageID string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"edited_at"`
}

// MessageDeletedPayload is broadcast when a message is deleted for everyone.
type MessageDeletedPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
}

// ReactionPayload is broadcast when a reaction is set or removed.
type ReactionPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji,omitempty"`
}

// PinPayload is broadcast when a message is pinned or unpinned.
type PinPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	PinnedBy  string `json:"pinned_by,omitempty"`
}

// TypingPayload is broadcast when a user is typing.
type TypingPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// MessageReadPayload is broadcast when a user reads a chat.
type MessageReadPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// MessageDeliveredPayload is broadcast when a recipient acknowledges receipt.
type MessageDeliveredPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
}

// UserStatusPayload is broadcast for online/offline status.
type UserStatusPayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// MemberChangedPayload is broadcast when group membership changes.
type MemberChangedPayload struct {
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	IsLeave   bool   `json:"is_leave,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	ActorName string `json:"actor_name,omitempty"`
}
