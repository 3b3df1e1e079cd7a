package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatwave/internal/membership"
	"github.com/chatwave/internal/middleware"
	"github.com/chatwave/internal/model"
	"github.com/chatwave/internal/repository"
	"github.com/chatwave/internal/ws"
)

type MessageHandler struct {
	msgRepo        *repository.MessageRepository
	chatRepo       *repository.ChatRepository
	membershipRepo *repository.MembershipRepository
	reactRepo      *repository.ReactionRepository
	pinnedRepo     *repository.PinnedRepository
	starredRepo    *repository.StarredRepository
	userRepo       *repository.UserRepository
	hub            *ws.Hub
}

func NewMessageHandler(
	msgRepo *repository.MessageRepository,
	chatRepo *repository.ChatRepository,
	membershipRepo *repository.MembershipRepository,
	reactRepo *repository.ReactionRepository,
	pinnedRepo *repository.PinnedRepository,
	starredRepo *repository.StarredRepository,
	userRepo *repository.UserRepository,
	hub *ws.Hub,
) *MessageHandler {
	return &MessageHandler{
		msgRepo:        msgRepo,
		chatRepo:       chatRepo,
		membershipRepo: membershipRepo,
		reactRepo:      reactRepo,
		pinnedRepo:     pinnedRepo,
		starredRepo:    starredRepo,
		userRepo:       userRepo,
		hub:            hub,
	}
}

type createMessageRequest struct {
	Content      string             `json:"content"`
	ContentType  model.ContentType  `json:"content_type"`
	ScheduledFor *time.Time         `json:"scheduled_for,omitempty"`
	ReplyToIDs   []string           `json:"reply_to_ids,omitempty"`
	Mentions     []string           `json:"mentions,omitempty"`
	Attachments  []model.Attachment `json:"attachments,omitempty"`
}

// CreateMessage sends a message now, or stores it for later when scheduled_for
// is set. A scheduled message is invisible to everyone but the sender until the
// scheduler fires it, and it does not bump the chat.
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	userID := middleware.GetUserID(r.Context())

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" && len(req.Attachments) == 0 && len(req.ReplyToIDs) == 0 {
		writeError(w, http.StatusBadRequest, "content, attachments or reply required")
		return
	}
	if req.ContentType == "" {
		req.ContentType = model.ContentTypeText
	}
	if req.ContentType == model.ContentTypeSystem {
		writeError(w, http.StatusBadRequest, "system messages cannot be sent directly")
		return
	}

	now := time.Now().UTC()
	scheduled := req.ScheduledFor != nil
	if scheduled && !req.ScheduledFor.After(now) {
		writeError(w, http.StatusBadRequest, "scheduled time must be in the future")
		return
	}

	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	m := &model.Message{
		ID:           uuid.New().String(),
		ChatID:       chatID,
		SenderID:     userID,
		Content:      req.Content,
		ContentType:  req.ContentType,
		Status:       model.MessageStatusSent,
		IsScheduled:  scheduled,
		ScheduledFor: req.ScheduledFor,
		ReplyToIDs:   req.ReplyToIDs,
		Mentions:     req.Mentions,
		Attachments:  req.Attachments,
		CreatedAt:    now,
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	if scheduled {
		// Delivery waits for the scheduler; nothing is broadcast now.
		writeJSON(w, http.StatusCreated, m)
		return
	}

	if err := h.chatRepo.SetLastMessage(r.Context(), chatID, m.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update chat")
		return
	}

	if sender, err := h.userRepo.GetByID(r.Context(), userID); err == nil {
		pub := sender.ToPublic()
		m.Sender = &pub
	}
	memberIDs, err := h.chatRepo.GetMemberIDs(r.Context(), chatID)
	if err == nil {
		h.hub.BroadcastMessage(r.Context(), m, memberIDs)
	}

	writeJSON(w, http.StatusCreated, m)
}

// GetMessages returns the chat history visible to the caller, ordered by
// effective timestamp. For group chats a former membership window still shows
// the messages from that window; messages outside every window stay hidden.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}

	chat, err := h.chatRepo.GetByID(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get chat")
		return
	}

	var intervals []model.Interval
	if chat.IsGroup() {
		events, err := h.membershipRepo.EventsForChat(r.Context(), chatID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get membership history")
			return
		}
		intervals = membership.BuildIntervals(events, userID, isMember)
		if len(intervals) == 0 {
			// Never was a member: nothing to see.
			writeError(w, http.StatusForbidden, "not a member")
			return
		}
	} else if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit > 200 {
		limit = 200
	}

	messages, err := h.msgRepo.GetChatMessages(r.Context(), chatID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}

	visible := membership.FilterVisible(messages, userID, chat.IsGroup(), intervals)
	membership.SortByEffectiveTime(visible)

	for i := range visible {
		reactions, err := h.reactRepo.GetByMessage(r.Context(), visible[i].ID)
		if err == nil && len(reactions) > 0 {
			visible[i].Reactions = reactions
		}
		for _, replyID := range visible[i].ReplyToIDs {
			replyMsg, err := h.msgRepo.GetByID(r.Context(), replyID)
			if err == nil {
				visible[i].ReplyTo = append(visible[i].ReplyTo, replyMsg)
			}
		}
	}

	writeJSON(w, http.StatusOK, visible)
}

// GetScheduled lists the caller's own pending scheduled messages for a chat.
func (h *MessageHandler) GetScheduled(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	msgs, err := h.msgRepo.ListScheduledBySender(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get scheduled messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type updateScheduledRequest struct {
	Content      string    `json:"content"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// UpdateScheduled edits a pending scheduled message. Racing the scheduler
// yields 409: the message went out and can no longer change.
func (h *MessageHandler) UpdateScheduled(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	var req updateScheduledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	if !req.ScheduledFor.After(time.Now().UTC()) {
		writeError(w, http.StatusBadRequest, "scheduled time must be in the future")
		return
	}

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if m.SenderID != userID {
		writeError(w, http.StatusForbidden, "not the sender")
		return
	}

	if err := h.msgRepo.UpdateScheduled(r.Context(), messageID, req.Content, req.ScheduledFor.UTC()); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadySent):
			writeError(w, http.StatusConflict, "message already sent")
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "message not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update scheduled message")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CancelScheduled deletes a pending scheduled message. A cancel that loses the
// race against the scheduler gets 409, not a silent delete of a sent message.
func (h *MessageHandler) CancelScheduled(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if m.SenderID != userID {
		writeError(w, http.StatusForbidden, "not the sender")
		return
	}

	if err := h.msgRepo.DeleteScheduled(r.Context(), messageID); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadySent):
			writeError(w, http.StatusConflict, "message already sent")
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "message not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to cancel scheduled message")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkDelivered acknowledges receipt of a single message.
func (h *MessageHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if err := h.msgRepo.MarkDelivered(r.Context(), messageID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark delivered")
		return
	}

	h.hub.SendToUser(m.SenderID, ws.OutgoingMessage{
		Type: ws.EventMessageDelivered,
		Payload: ws.MessageDeliveredPayload{
			MessageID: messageID,
			ChatID:    m.ChatID,
			UserID:    userID,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MarkAsRead is the bulk read on chat open. Personal chats flip statuses
// directly; group chats accumulate per-user reads and promote messages the
// whole current membership has read.
func (h *MessageHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	chat, err := h.chatRepo.GetByID(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get chat")
		return
	}

	now := time.Now().UTC()
	if chat.IsGroup() {
		err = h.msgRepo.AddGroupReads(r.Context(), chatID, userID, now)
	} else {
		err = h.msgRepo.MarkChatRead(r.Context(), chatID, userID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark as read")
		return
	}
	if err := h.chatRepo.UpdateMemberLastRead(r.Context(), chatID, userID, now); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update read marker")
		return
	}

	h.hub.BroadcastEvent(r.Context(), chatID, ws.OutgoingMessage{
		Type:    ws.EventMessageRead,
		Payload: ws.MessageReadPayload{ChatID: chatID, UserID: userID},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (h *MessageHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if m.SenderID != userID {
		writeError(w, http.StatusForbidden, "not the sender")
		return
	}
	if m.IsScheduled && !m.ScheduledSent {
		writeError(w, http.StatusBadRequest, "use the scheduled message endpoint")
		return
	}

	editedAt := time.Now().UTC()
	if err := h.msgRepo.UpdateContent(r.Context(), messageID, req.Content, editedAt); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to edit message")
		return
	}

	h.hub.BroadcastEvent(r.Context(), m.ChatID, ws.OutgoingMessage{
		Type: ws.EventMessageEdited,
		Payload: ws.MessageEditedPayload{
			MessageID: messageID,
			ChatID:    m.ChatID,
			Content:   req.Content,
			EditedAt:  editedAt,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteMessage hides the message for the caller, or with ?for_everyone=true
// removes it for all (sender only).
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}

	if r.URL.Query().Get("for_everyone") == "true" {
		if m.SenderID != userID {
			writeError(w, http.StatusForbidden, "not the sender")
			return
		}
		if err := h.msgRepo.HardDelete(r.Context(), messageID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete message")
			return
		}
		h.hub.BroadcastEvent(r.Context(), m.ChatID, ws.OutgoingMessage{
			Type:    ws.EventMessageDeleted,
			Payload: ws.MessageDeletedPayload{MessageID: messageID, ChatID: m.ChatID},
		})
	} else {
		if err := h.msgRepo.HideForUser(r.Context(), messageID, userID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to hide message")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// HideMessage removes a message from the caller's view only. Unlike delete
// with for_everyone, the sender keeps no special rights here.
func (h *MessageHandler) HideMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	if _, err := h.msgRepo.GetByID(r.Context(), messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if err := h.msgRepo.HideForUser(r.Context(), messageID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hide message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

// SetReaction stores the caller's reaction; a repeat with a different emoji
// replaces the previous one.
func (h *MessageHandler) SetReaction(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Emoji == "" {
		writeError(w, http.StatusBadRequest, "emoji required")
		return
	}

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}

	if err := h.reactRepo.Set(r.Context(), messageID, userID, req.Emoji); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set reaction")
		return
	}

	h.hub.BroadcastEvent(r.Context(), m.ChatID, ws.OutgoingMessage{
		Type: ws.EventReactionSet,
		Payload: ws.ReactionPayload{
			MessageID: messageID,
			ChatID:    m.ChatID,
			UserID:    userID,
			Emoji:     req.Emoji,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}

	if err := h.reactRepo.Remove(r.Context(), messageID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove reaction")
		return
	}

	h.hub.BroadcastEvent(r.Context(), m.ChatID, ws.OutgoingMessage{
		Type:    ws.EventReactionRemoved,
		Payload: ws.ReactionPayload{MessageID: messageID, ChatID: m.ChatID, UserID: userID},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) GetReactions(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	reactions, err := h.reactRepo.GetByMessage(r.Context(), messageID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reactions")
		return
	}
	writeJSON(w, http.StatusOK, reactions)
}

// PinMessage pins a message. At most three pins per chat; a fourth attempt
// fails without touching the existing pins.
func (h *MessageHandler) PinMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil || m.ChatID != chatID {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	if err := h.pinnedRepo.Pin(r.Context(), chatID, messageID, userID); err != nil {
		if errors.Is(err, repository.ErrPinLimit) {
			writeError(w, http.StatusBadRequest, "pin limit reached")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to pin message")
		return
	}

	h.hub.BroadcastEvent(r.Context(), chatID, ws.OutgoingMessage{
		Type:    ws.EventMessagePinned,
		Payload: ws.PinPayload{MessageID: messageID, ChatID: chatID, PinnedBy: userID},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) UnpinMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	if err := h.pinnedRepo.Unpin(r.Context(), chatID, messageID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unpin message")
		return
	}

	h.hub.BroadcastEvent(r.Context(), chatID, ws.OutgoingMessage{
		Type:    ws.EventMessageUnpinned,
		Payload: ws.PinPayload{MessageID: messageID, ChatID: chatID},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) GetPinnedMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	pinned, err := h.pinnedRepo.GetPinned(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get pinned messages")
		return
	}
	writeJSON(w, http.StatusOK, pinned)
}

func (h *MessageHandler) StarMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	if _, err := h.msgRepo.GetByID(r.Context(), messageID); err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if err := h.starredRepo.Star(r.Context(), userID, messageID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to star message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) UnstarMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	if err := h.starredRepo.Unstar(r.Context(), userID, messageID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unstar message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) GetStarredMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	stars, err := h.starredRepo.GetStarred(r.Context(), userID, chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get starred messages")
		return
	}
	writeJSON(w, http.StatusOK, stars)
}
