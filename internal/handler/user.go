package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatwave/internal/middleware"
	"github.com/chatwave/internal/model"
	"github.com/chatwave/internal/repository"
	"github.com/chatwave/internal/storage"
)

type UserHandler struct {
	userRepo *repository.UserRepository
	store    storage.Store
}

func NewUserHandler(userRepo *repository.UserRepository, store storage.Store) *UserHandler {
	return &UserHandler{userRepo: userRepo, store: store}
}

// Register creates a user and opens a session for it. The session id goes into
// the X-Session-Id header on subsequent requests.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}

	u := &model.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.userRepo.Create(r.Context(), u); err != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	sessionID := uuid.New().String()
	if err := h.store.SetSessionUser(r.Context(), sessionID, u.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":       u,
		"session_id": sessionID,
	})
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	u, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	if sessionID != "" {
		if err := h.store.DeleteSession(r.Context(), sessionID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete session")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
