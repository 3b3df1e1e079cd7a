package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatwave/internal/logger"
	"github.com/chatwave/internal/middleware"
	"github.com/chatwave/internal/model"
	"github.com/chatwave/internal/repository"
	"github.com/chatwave/internal/ws"
)

type ChatHandler struct {
	chatRepo       *repository.ChatRepository
	userRepo       *repository.UserRepository
	msgRepo        *repository.MessageRepository
	membershipRepo *repository.MembershipRepository
	hub            *ws.Hub
}

func NewChatHandler(
	chatRepo *repository.ChatRepository,
	userRepo *repository.UserRepository,
	msgRepo *repository.MessageRepository,
	membershipRepo *repository.MembershipRepository,
	hub *ws.Hub,
) *ChatHandler {
	return &ChatHandler{
		chatRepo:       chatRepo,
		userRepo:       userRepo,
		msgRepo:        msgRepo,
		membershipRepo: membershipRepo,
		hub:            hub,
	}
}

// GetUserChats lists the caller's chats newest-activity first, with members,
// last message and unread count.
func (h *ChatHandler) GetUserChats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	chats, err := h.chatRepo.GetUserChats(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get chats")
		return
	}

	out := make([]model.ChatWithLastMessage, 0, len(chats))
	for _, c := range chats {
		item := model.ChatWithLastMessage{Chat: c}
		if members, err := h.chatRepo.GetMembers(r.Context(), c.ID); err == nil {
			item.Members = make([]model.UserPublic, 0, len(members))
			for _, m := range members {
				item.Members = append(item.Members, m.ToPublic())
			}
		}
		if c.LastMessageID != nil {
			if lm, err := h.msgRepo.GetByID(r.Context(), *c.LastMessageID); err == nil {
				item.LastMessage = lm
			}
		}
		if n, err := h.chatRepo.GetUnreadCount(r.Context(), c.ID, userID); err == nil {
			item.UnreadCount = n
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

type createPersonalChatRequest struct {
	UserID string `json:"user_id"`
}

// CreatePersonalChat finds or creates the single personal chat between the
// caller and the given user. Retrying never produces a duplicate pair chat.
func (h *ChatHandler) CreatePersonalChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createPersonalChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	if req.UserID == userID {
		writeError(w, http.StatusBadRequest, "cannot open a chat with yourself")
		return
	}

	peer, err := h.userRepo.GetByID(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	existing, err := h.chatRepo.FindPersonalChat(r.Context(), userID, req.UserID)
	if err == nil {
		writeJSON(w, http.StatusOK, existing)
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to find chat")
		return
	}

	now := time.Now().UTC()
	chat := &model.Chat{
		ID:        uuid.New().String(),
		ChatType:  model.ChatTypePersonal,
		Name:      peer.Username,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.chatRepo.Create(r.Context(), chat); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	for _, uid := range []string{userID, req.UserID} {
		member := &model.ChatMember{ChatID: chat.ID, UserID: uid, Role: "member", JoinedAt: now}
		if err := h.chatRepo.AddMember(r.Context(), member); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to add members")
			return
		}
	}

	h.hub.BroadcastEvent(r.Context(), chat.ID, ws.OutgoingMessage{
		Type:    ws.EventChatCreated,
		Payload: chat,
	})
	writeJSON(w, http.StatusCreated, chat)
}

type createGroupChatRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AvatarURL   string   `json:"avatar_url"`
	MemberIDs   []string `json:"member_ids"`
}

// CreateGroupChat creates a group with the caller as admin. Every initial
// member gets a join event, so history windows start at creation.
func (h *ChatHandler) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createGroupChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	now := time.Now().UTC()
	chat := &model.Chat{
		ID:          uuid.New().String(),
		ChatType:    model.ChatTypeGroup,
		Name:        req.Name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.chatRepo.Create(r.Context(), chat); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}

	memberIDs := append([]string{userID}, req.MemberIDs...)
	seen := make(map[string]struct{}, len(memberIDs))
	for _, uid := range memberIDs {
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		role := "member"
		if uid == userID {
			role = "admin"
		}
		member := &model.ChatMember{ChatID: chat.ID, UserID: uid, Role: role, JoinedAt: now}
		if err := h.chatRepo.AddMember(r.Context(), member); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to add members")
			return
		}
		if err := h.membershipRepo.Record(r.Context(), chat.ID, uid, model.MembershipJoin, now); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to record membership")
			return
		}
	}

	creator, err := h.userRepo.GetByID(r.Context(), userID)
	if err == nil {
		h.postSystemMessage(r.Context(), chat.ID, userID,
			fmt.Sprintf("%s created the group \"%s\"", creator.Username, chat.Name), nil)
	}

	h.hub.BroadcastEvent(r.Context(), chat.ID, ws.OutgoingMessage{
		Type:    ws.EventChatCreated,
		Payload: chat,
	})
	writeJSON(w, http.StatusCreated, chat)
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
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
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get chat")
		return
	}

	item := model.ChatWithLastMessage{Chat: *chat}
	if members, err := h.chatRepo.GetMembers(r.Context(), chatID); err == nil {
		item.Members = make([]model.UserPublic, 0, len(members))
		for _, m := range members {
			item.Members = append(item.Members, m.ToPublic())
		}
	}
	if chat.LastMessageID != nil {
		if lm, err := h.msgRepo.GetByID(r.Context(), *chat.LastMessageID); err == nil {
			item.LastMessage = lm
		}
	}
	writeJSON(w, http.StatusOK, item)
}

type updateChatRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
}

func (h *ChatHandler) UpdateChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if !h.requireAdmin(w, r, chatID, userID) {
		return
	}

	var req updateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := h.chatRepo.UpdateChat(r.Context(), chatID, req.Name, req.Description, req.AvatarURL); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update chat")
		return
	}

	h.hub.BroadcastEvent(r.Context(), chatID, ws.OutgoingMessage{
		Type:    ws.EventChatUpdated,
		Payload: map[string]string{"chat_id": chatID, "name": req.Name},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type addMembersRequest struct {
	MemberIDs []string `json:"member_ids"`
}

// AddMembers adds users to a group. Each addition writes a join event: the new
// member's history window opens here, so earlier messages stay invisible to
// them.
func (h *ChatHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if _, ok := h.requireGroupMember(w, r, chatID, userID); !ok {
		return
	}

	var req addMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.MemberIDs) == 0 {
		writeError(w, http.StatusBadRequest, "member_ids required")
		return
	}

	actor, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	now := time.Now().UTC()
	for _, uid := range req.MemberIDs {
		added, err := h.userRepo.GetByID(r.Context(), uid)
		if err != nil {
			writeError(w, http.StatusNotFound, "user not found: "+uid)
			return
		}
		alreadyMember, err := h.chatRepo.IsMember(r.Context(), chatID, uid)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check membership")
			return
		}
		if alreadyMember {
			continue
		}
		member := &model.ChatMember{ChatID: chatID, UserID: uid, Role: "member", JoinedAt: now}
		if err := h.chatRepo.AddMember(r.Context(), member); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to add member")
			return
		}
		if err := h.membershipRepo.Record(r.Context(), chatID, uid, model.MembershipJoin, now); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to record membership")
			return
		}

		h.postSystemMessage(r.Context(), chatID, userID,
			fmt.Sprintf("%s added %s", actor.Username, added.Username), nil)
		h.hub.BroadcastEvent(r.Context(), chatID, ws.OutgoingMessage{
			Type: ws.EventMemberAdded,
			Payload: ws.MemberChangedPayload{
				ChatID:    chatID,
				UserID:    uid,
				Username:  added.Username,
				ActorID:   userID,
				ActorName: actor.Username,
			},
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RemoveMember removes a user from a group (admin only). The removal writes a
// left event closing their history window, and the system notice is excluded
// from the removed user so they never see it.
func (h *ChatHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	memberID := chi.URLParam(r, "memberId")
	userID := middleware.GetUserID(r.Context())

	if _, ok := h.requireGroupMember(w, r, chatID, userID); !ok {
		return
	}
	if !h.requireAdmin(w, r, chatID, userID) {
		return
	}

	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, memberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusNotFound, "not a member")
		return
	}

	now := time.Now().UTC()
	if err := h.chatRepo.RemoveMember(r.Context(), chatID, memberID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	if err := h.membershipRepo.Record(r.Context(), chatID, memberID, model.MembershipLeft, now); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record membership")
		return
	}

	actor, aerr := h.userRepo.GetByID(r.Context(), userID)
	removed, rerr := h.userRepo.GetByID(r.Context(), memberID)
	if aerr == nil && rerr == nil {
		h.postSystemMessage(r.Context(), chatID, userID,
			fmt.Sprintf("%s removed %s", actor.Username, removed.Username), []string{memberID})
	}

	h.hub.BroadcastEvent(r.Context(), chatID, ws.OutgoingMessage{
		Type: ws.EventMemberRemoved,
		Payload: ws.MemberChangedPayload{
			ChatID:  chatID,
			UserID:  memberID,
			ActorID: userID,
		},
	})
	// The removed user is no longer reached by BroadcastEvent; tell them directly.
	h.hub.SendToUser(memberID, ws.OutgoingMessage{
		Type:    ws.EventMemberRemoved,
		Payload: ws.MemberChangedPayload{ChatID: chatID, UserID: memberID, ActorID: userID},
	})
	w.WriteHeader(http.StatusNoContent)
}

// LeaveChat removes the caller from a group, closing their history window.
func (h *ChatHandler) LeaveChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if _, ok := h.requireGroupMember(w, r, chatID, userID); !ok {
		return
	}

	now := time.Now().UTC()
	if err := h.chatRepo.RemoveMember(r.Context(), chatID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to leave chat")
		return
	}
	if err := h.membershipRepo.Record(r.Context(), chatID, userID, model.MembershipLeft, now); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record membership")
		return
	}

	if u, err := h.userRepo.GetByID(r.Context(), userID); err == nil {
		h.postSystemMessage(r.Context(), chatID, userID,
			fmt.Sprintf("%s left the group", u.Username), nil)
	}

	h.hub.BroadcastEvent(r.Context(), chatID, ws.OutgoingMessage{
		Type: ws.EventMemberRemoved,
		Payload: ws.MemberChangedPayload{
			ChatID:  chatID,
			UserID:  userID,
			IsLeave: true,
		},
	})
	w.WriteHeader(http.StatusNoContent)
}

// HideChat soft-deletes the chat for the caller only. Any new message revives it.
func (h *ChatHandler) HideChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
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

	if err := h.chatRepo.HideForUser(r.Context(), chatID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hide chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postSystemMessage creates a system notice, bumps the chat and fans it out.
// excludeUsers never see the notice, in history or in the fan-out.
func (h *ChatHandler) postSystemMessage(ctx context.Context, chatID, senderID, content string, excludeUsers []string) {
	now := time.Now().UTC()
	m := &model.Message{
		ID:            uuid.New().String(),
		ChatID:        chatID,
		SenderID:      senderID,
		Content:       content,
		ContentType:   model.ContentTypeSystem,
		Status:        model.MessageStatusSent,
		ExcludedUsers: excludeUsers,
		CreatedAt:     now,
	}
	if err := h.msgRepo.Create(ctx, m); err != nil {
		logger.Errorf("system message chat=%s: %v", chatID, err)
		return
	}
	if err := h.chatRepo.SetLastMessage(ctx, chatID, m.ID, now); err != nil {
		logger.Errorf("system message bump chat=%s: %v", chatID, err)
	}
	memberIDs, err := h.chatRepo.GetMemberIDs(ctx, chatID)
	if err != nil {
		logger.Errorf("system message members chat=%s: %v", chatID, err)
		return
	}
	h.hub.BroadcastMessage(ctx, m, memberIDs)
}

// requireGroupMember checks the chat exists, is a group, and the caller is a
// member. Writes the error response itself on failure.
func (h *ChatHandler) requireGroupMember(w http.ResponseWriter, r *http.Request, chatID, userID string) (*model.Chat, bool) {
	chat, err := h.chatRepo.GetByID(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "failed to get chat")
		return nil, false
	}
	if !chat.IsGroup() {
		writeError(w, http.StatusBadRequest, "not a group chat")
		return nil, false
	}
	isMember, err := h.chatRepo.IsMember(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return nil, false
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return nil, false
	}
	return chat, true
}

func (h *ChatHandler) requireAdmin(w http.ResponseWriter, r *http.Request, chatID, userID string) bool {
	role, err := h.chatRepo.GetMemberRole(r.Context(), chatID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusForbidden, "not a member")
			return false
		}
		writeError(w, http.StatusInternalServerError, "failed to check role")
		return false
	}
	if role != "admin" {
		writeError(w, http.StatusForbidden, "admin only")
		return false
	}
	return true
}
