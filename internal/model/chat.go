package model

import "time"

type ChatType string

const (
	ChatTypePersonal ChatType = "personal"
	ChatTypeGroup    ChatType = "group"
)

type Chat struct {
	ID            string    `json:"id"`
	ChatType      ChatType  `json:"chat_type"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	AvatarURL     string    `json:"avatar_url"`
	CreatedBy     string    `json:"created_by"`
	LastMessageID *string   `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *Chat) IsGroup() bool { return c.ChatType == ChatTypeGroup }

type ChatMember struct {
	ChatID     string    `json:"chat_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	JoinedAt   time.Time `json:"joined_at"`
	LastReadAt time.Time `json:"last_read_at"`
}

type ChatWithLastMessage struct {
	Chat        Chat         `json:"chat"`
	LastMessage *Message     `json:"last_message,omitempty"`
	Members     []UserPublic `json:"members"`
	UnreadCount int          `json:"unread_count"`
}
