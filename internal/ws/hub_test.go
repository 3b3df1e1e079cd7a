package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatwave/internal/model"
)

// newFanoutClient builds a client that only buffers outgoing messages; the
// send buffer is large enough that sendToClient never falls through to the
// slow-client path, so no real connection is needed.
func newFanoutClient(h *Hub, userID string) *Client {
	return NewClient(h, nil, userID)
}

func subscribe(h *Hub, c *Client, chatID string) {
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*Client]struct{})
	}
	h.rooms[chatID][c] = struct{}{}
}

func connect(h *Hub, c *Client) {
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

func received(c *Client) int {
	return len(c.send)
}

func TestBroadcastMessageSkipsExcludedRoomSubscriber(t *testing.T) {
	h := NewHub(nil, nil, nil, nil, 10, nil)
	chatID := "chat-1"

	removed := newFanoutClient(h, "removed-user")
	member := newFanoutClient(h, "user-2")
	// The removed member's session still holds a stale room subscription.
	subscribe(h, removed, chatID)
	subscribe(h, member, chatID)
	connect(h, member)

	m := &model.Message{
		ID:            "msg-1",
		ChatID:        chatID,
		SenderID:      "admin-1",
		Content:       "admin removed removed-user",
		ContentType:   model.ContentTypeSystem,
		ExcludedUsers: []string{"removed-user"},
	}
	h.BroadcastMessage(context.Background(), m, []string{"admin-1", "user-2"})

	require.Zero(t, received(removed), "excluded user must not receive the notice via the room")
	require.Equal(t, 1, received(member))
}

func TestBroadcastMessageDeliversOncePerSession(t *testing.T) {
	h := NewHub(nil, nil, nil, nil, 10, nil)
	chatID := "chat-1"

	// One session both subscribed to the room and reachable via the user set.
	viewer := newFanoutClient(h, "user-2")
	subscribe(h, viewer, chatID)
	connect(h, viewer)

	// A second session of the same user, not viewing the chat.
	background := newFanoutClient(h, "user-2")
	connect(h, background)

	m := &model.Message{
		ID:          "msg-1",
		ChatID:      chatID,
		SenderID:    "user-1",
		Content:     "hi",
		ContentType: model.ContentTypeText,
	}
	h.BroadcastMessage(context.Background(), m, []string{"user-1", "user-2"})

	require.Equal(t, 1, received(viewer), "dual addressing must be deduplicated per session")
	require.Equal(t, 1, received(background))
}
