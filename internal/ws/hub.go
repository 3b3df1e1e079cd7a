package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatwave/internal/logger"
	"github.com/chatwave/internal/model"
	"github.com/chatwave/internal/repository"
)

// PushNotifier sends push notifications. If nil, pushes are disabled.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

// Hub fans events out to connected sessions. Every message is addressed two
// ways: to the room of clients subscribed to the chat, and to each
// participant's per-user client set (so a client not viewing the chat still
// updates its chat list). Delivery is fire-and-forget, at most once per
// connected session; disconnected clients reconcile via a history fetch.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}
	joined   map[*Client]map[string]struct{}
	total    int
	maxConns int

	chatRepo   *repository.ChatRepository
	msgRepo    *repository.MessageRepository
	userRepo   *repository.UserRepository
	reactRepo  *repository.ReactionRepository
	pushClient PushNotifier

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(
	chatRepo *repository.ChatRepository,
	msgRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	reactRepo *repository.ReactionRepository,
	maxConns int,
	pushClient PushNotifier,
) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		joined:     make(map[*Client]map[string]struct{}),
		maxConns:   maxConns,
		chatRepo:   chatRepo,
		msgRepo:    msgRepo,
		userRepo:   userRepo,
		reactRepo:  reactRepo,
		pushClient: pushClient,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.joined = make(map[*Client]map[string]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.userRepo.SetOnline(ctx, c.userID, true); err != nil {
		logger.Errorf("ws set online user=%s: %v", c.userID, err)
	}
	h.broadcastUserStatus(c.userID, true)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	for chatID := range h.joined[c] {
		delete(h.rooms[chatID], c)
		if len(h.rooms[chatID]) == 0 {
			delete(h.rooms, chatID)
		}
	}
	delete(h.joined, c)
	lastClient := len(clients) == 0
	if lastClient {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()

	if lastClient {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.userRepo.SetOnline(ctx, c.userID, false); err != nil {
			logger.Errorf("ws set offline user=%s: %v", c.userID, err)
		}
		h.broadcastUserStatus(c.userID, false)
	}
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventNewMessage:
		h.handleNewMessage(ctx, c, msg)
	case EventSubscribe:
		h.handleSubscribe(ctx, c, msg)
	case EventUnsubscribe:
		h.handleUnsubscribe(c, msg)
	case EventTyping:
		h.handleTyping(ctx, c, msg)
	case EventMessageRead:
		h.handleMessageRead(ctx, c, msg)
	case EventMessageDelivered:
		h.handleMessageDelivered(ctx, c, msg)
	case EventReactionSet:
		h.handleSetReaction(ctx, c, msg)
	case EventReactionRemoved:
		h.handleRemoveReaction(ctx, c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

// handleSubscribe attaches the session to a chat room so it receives the
// room-addressed copy of fan-outs. Members only.
func (h *Hub) handleSubscribe(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ChatID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	isMember, err := h.chatRepo.IsMember(ctx, msg.ChatID, c.userID)
	if err != nil {
		logger.Errorf("ws subscribe membership chat=%s user=%s: %v", msg.ChatID, c.userID, err)
		return
	}
	if !isMember {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "not a member"})
		return
	}

	h.mu.Lock()
	if _, ok := h.rooms[msg.ChatID]; !ok {
		h.rooms[msg.ChatID] = make(map[*Client]struct{})
	}
	h.rooms[msg.ChatID][c] = struct{}{}
	if _, ok := h.joined[c]; !ok {
		h.joined[c] = make(map[string]struct{})
	}
	h.joined[c][msg.ChatID] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) handleUnsubscribe(c *Client, msg IncomingMessage) {
	if msg.ChatID == "" {
		return
	}
	h.mu.Lock()
	delete(h.rooms[msg.ChatID], c)
	if len(h.rooms[msg.ChatID]) == 0 {
		delete(h.rooms, msg.ChatID)
	}
	delete(h.joined[c], msg.ChatID)
	h.mu.Unlock()
}

func (h *Hub) handleNewMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	if msg.ChatID == "" || msg.Content == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "chat_id and content required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	isMember, err := h.chatRepo.IsMember(ctx, msg.ChatID, c.userID)
	if err != nil {
		logger.Errorf("ws check membership chat=%s user=%s: %v", msg.ChatID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "internal error"})
		return
	}
	if !isMember {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "not a member"})
		return
	}

	now := time.Now().UTC()
	m := &model.Message{
		ID:          uuid.New().String(),
		ChatID:      msg.ChatID,
		SenderID:    c.userID,
		Content:     msg.Content,
		ContentType: model.ContentTypeText,
		Status:      model.MessageStatusSent,
		CreatedAt:   now,
	}

	if err := h.msgRepo.Create(ctx, m); err != nil {
		logger.Errorf("ws save message chat=%s user=%s: %v", msg.ChatID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to save message"})
		return
	}

	// Chat list state must be consistent before clients see the push.
	if err := h.chatRepo.SetLastMessage(ctx, msg.ChatID, m.ID, now); err != nil {
		logger.Errorf("ws bump chat=%s: %v", msg.ChatID, err)
	}

	sender, err := h.userRepo.GetByID(ctx, c.userID)
	if err != nil {
		logger.Errorf("ws get sender user=%s: %v", c.userID, err)
	} else {
		pub := sender.ToPublic()
		m.Sender = &pub
	}

	memberIDs, err := h.chatRepo.GetMemberIDs(ctx, msg.ChatID)
	if err != nil {
		logger.Errorf("ws get members chat=%s: %v", msg.ChatID, err)
		return
	}

	h.BroadcastMessage(ctx, m, memberIDs)
}

// BroadcastMessage delivers a fully populated message to every connected
// session of every participant: once via the chat room, once via each
// participant's user channel, deduplicated so each session gets one copy.
// Shared by live sends and the scheduler's fired messages.
func (h *Hub) BroadcastMessage(ctx context.Context, m *model.Message, memberIDs []string) {
	defer logger.DeferLogDuration("ws.BroadcastMessage", time.Now())()
	out := OutgoingMessage{Type: EventMessageReceived, Payload: m}

	h.mu.RLock()
	targets := make(map[*Client]struct{}, 8)
	for c := range h.rooms[m.ChatID] {
		// A removed member may still hold a room subscription; the exclusion
		// list applies to both addressing paths.
		if containsID(m.ExcludedUsers, c.userID) {
			continue
		}
		targets[c] = struct{}{}
	}
	for _, uid := range memberIDs {
		if containsID(m.ExcludedUsers, uid) {
			continue
		}
		for c := range h.clients[uid] {
			targets[c] = struct{}{}
		}
	}
	list := make([]*Client, 0, len(targets))
	for c := range targets {
		list = append(list, c)
	}
	h.mu.RUnlock()

	for _, c := range list {
		h.sendToClient(c, out)
	}

	if h.pushClient != nil {
		h.pushNewMessage(m, memberIDs)
	}
}

func (h *Hub) pushNewMessage(m *model.Message, memberIDs []string) {
	senderName := ""
	if m.Sender != nil {
		senderName = m.Sender.Username
	}
	if senderName == "" {
		senderName = "New message"
	}
	body := m.Content
	if m.ContentType != model.ContentTypeText || body == "" {
		body = "Attachment"
	}
	if len(body) > 120 {
		body = body[:117] + "..."
	}
	data := map[string]string{"chat_id": m.ChatID, "message_id": m.ID}
	for _, uid := range memberIDs {
		if uid == m.SenderID || containsID(m.ExcludedUsers, uid) {
			continue
		}
		uid := uid
		go h.pushClient.Notify(context.Background(), uid, senderName, body, data)
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ChatID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	memberIDs, err := h.chatRepo.GetMemberIDs(ctx, msg.ChatID)
	if err != nil {
		logger.Errorf("ws get members for typing chat=%s: %v", msg.ChatID, err)
		return
	}

	out := OutgoingMessage{
		Type: EventTyping,
		Payload: TypingPayload{
			ChatID: msg.ChatID,
			UserID: c.userID,
		},
	}
	for _, uid := range memberIDs {
		if uid != c.userID {
			h.SendToUser(uid, out)
		}
	}
}

// handleMessageRead is the bulk read on chat open. Personal chats flip message
// status directly; group chats accumulate read_by and promote completed ones.
func (h *Hub) handleMessageRead(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ChatID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	chat, err := h.chatRepo.GetByID(ctx, msg.ChatID)
	if err != nil {
		logger.Errorf("ws mark read get chat=%s: %v", msg.ChatID, err)
		return
	}
	now := time.Now().UTC()
	if chat.IsGroup() {
		err = h.msgRepo.AddGroupReads(ctx, msg.ChatID, c.userID, now)
	} else {
		err = h.msgRepo.MarkChatRead(ctx, msg.ChatID, c.userID)
	}
	if err != nil {
		logger.Errorf("ws mark read chat=%s user=%s: %v", msg.ChatID, c.userID, err)
		return
	}

	if err := h.chatRepo.UpdateMemberLastRead(ctx, msg.ChatID, c.userID, now); err != nil {
		logger.Errorf("ws update last_read_at chat=%s user=%s: %v", msg.ChatID, c.userID, err)
	}

	h.BroadcastEvent(ctx, msg.ChatID, OutgoingMessage{
		Type: EventMessageRead,
		Payload: MessageReadPayload{
			ChatID: msg.ChatID,
			UserID: c.userID,
		},
	})
}

func (h *Hub) handleMessageDelivered(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.MessageID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	original, err := h.msgRepo.GetByID(ctx, msg.MessageID)
	if err != nil {
		return
	}
	if err := h.msgRepo.MarkDelivered(ctx, msg.MessageID, c.userID); err != nil {
		logger.Errorf("ws mark delivered message=%s user=%s: %v", msg.MessageID, c.userID, err)
		return
	}

	h.SendToUser(original.SenderID, OutgoingMessage{
		Type: EventMessageDelivered,
		Payload: MessageDeliveredPayload{
			MessageID: msg.MessageID,
			ChatID:    original.ChatID,
			UserID:    c.userID,
		},
	})
}

func (h *Hub) handleSetReaction(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.MessageID == "" || msg.Emoji == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	original, err := h.msgRepo.GetByID(ctx, msg.MessageID)
	if err != nil {
		return
	}

	if err := h.reactRepo.Set(ctx, msg.MessageID, c.userID, msg.Emoji); err != nil {
		logger.Errorf("ws set reaction %s: %v", msg.MessageID, err)
		return
	}

	h.BroadcastEvent(ctx, original.ChatID, OutgoingMessage{
		Type: EventReactionSet,
		Payload: ReactionPayload{
			MessageID: msg.MessageID,
			ChatID:    original.ChatID,
			UserID:    c.userID,
			Emoji:     msg.Emoji,
		},
	})
}

func (h *Hub) handleRemoveReaction(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.MessageID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	original, err := h.msgRepo.GetByID(ctx, msg.MessageID)
	if err != nil {
		return
	}

	if err := h.reactRepo.Remove(ctx, msg.MessageID, c.userID); err != nil {
		logger.Errorf("ws remove reaction %s: %v", msg.MessageID, err)
		return
	}

	h.BroadcastEvent(ctx, original.ChatID, OutgoingMessage{
		Type: EventReactionRemoved,
		Payload: ReactionPayload{
			MessageID: msg.MessageID,
			ChatID:    original.ChatID,
			UserID:    c.userID,
		},
	})
}

func (h *Hub) broadcastUserStatus(userID string, online bool) {
	evType := EventUserOffline
	if online {
		evType = EventUserOnline
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chats, err := h.chatRepo.GetUserChats(ctx, userID)
	if err != nil {
		logger.Errorf("ws get chats for status broadcast user=%s: %v", userID, err)
		return
	}

	out := OutgoingMessage{
		Type: evType,
		Payload: UserStatusPayload{
			UserID: userID,
			Online: online,
		},
	}

	notified := make(map[string]struct{}, 16)
	for _, chat := range chats {
		memberIDs, err := h.chatRepo.GetMemberIDs(ctx, chat.ID)
		if err != nil {
			logger.Errorf("ws get members for status broadcast chat=%s: %v", chat.ID, err)
			continue
		}
		for _, uid := range memberIDs {
			if uid == userID {
				continue
			}
			if _, ok := notified[uid]; ok {
				continue
			}
			notified[uid] = struct{}{}
			h.SendToUser(uid, out)
		}
	}
}

// BroadcastEvent sends a secondary event (reads, reactions, pins, membership
// changes) to all members of a chat via their user channels.
func (h *Hub) BroadcastEvent(ctx context.Context, chatID string, msg OutgoingMessage) {
	defer logger.DeferLogDuration("ws.BroadcastEvent", time.Now())()
	memberIDs, err := h.chatRepo.GetMemberIDs(ctx, chatID)
	if err != nil {
		logger.Errorf("ws broadcast to chat %s: %v", chatID, err)
		return
	}
	for _, uid := range memberIDs {
		h.SendToUser(uid, msg)
	}
}

// SendToUser delivers to every connected session of one user.
func (h *Hub) SendToUser(userID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
