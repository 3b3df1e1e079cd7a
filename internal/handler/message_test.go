package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newMessageRouter() http.Handler {
	h := NewMessageHandler(nil, nil, nil, nil, nil, nil, nil, nil)
	r := chi.NewRouter()
	r.Post("/api/chats/{chatId}/messages", h.CreateMessage)
	r.Put("/api/messages/{messageId}/scheduled", h.UpdateScheduled)
	return r
}

func postJSON(t *testing.T, router http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateMessageRejectsInvalidBody(t *testing.T) {
	router := newMessageRouter()
	rec := postJSON(t, router, http.MethodPost, "/api/chats/chat-1/messages", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMessageRequiresContent(t *testing.T) {
	router := newMessageRouter()
	rec := postJSON(t, router, http.MethodPost, "/api/chats/chat-1/messages", `{"content":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "content")
}

func TestCreateMessageRejectsSystemType(t *testing.T) {
	router := newMessageRouter()
	rec := postJSON(t, router, http.MethodPost, "/api/chats/chat-1/messages",
		`{"content":"hi","content_type":"system"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMessageRejectsPastScheduledTime(t *testing.T) {
	router := newMessageRouter()
	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	rec := postJSON(t, router, http.MethodPost, "/api/chats/chat-1/messages",
		`{"content":"later","scheduled_for":"`+past+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "future")
}

func TestUpdateScheduledRejectsPastTime(t *testing.T) {
	router := newMessageRouter()
	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	rec := postJSON(t, router, http.MethodPut, "/api/messages/msg-1/scheduled",
		`{"content":"later","scheduled_for":"`+past+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateScheduledRequiresContent(t *testing.T) {
	router := newMessageRouter()
	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	rec := postJSON(t, router, http.MethodPut, "/api/messages/msg-1/scheduled",
		`{"content":"","scheduled_for":"`+future+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
