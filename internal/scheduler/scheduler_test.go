package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/chatwave/internal/mocks"
	"github.com/chatwave/internal/model"
)

// The mocks package must not import this one, so the interface checks live here.
var (
	_ MessageStore = (*mocks.MessageStore)(nil)
	_ ChatStore    = (*mocks.ChatStore)(nil)
	_ Broadcaster  = (*mocks.Broadcaster)(nil)
	_ Locker       = (*mocks.Locker)(nil)
)

func newTestScheduler(msgs *mocks.MessageStore, chats *mocks.ChatStore, bcast *mocks.Broadcaster, locker *mocks.Locker) *Scheduler {
	var l Locker
	if locker != nil {
		l = locker
	}
	s := New(msgs, chats, bcast, l, time.Minute)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func dueMessage(id, chatID string, scheduledFor time.Time) model.Message {
	return model.Message{
		ID:           id,
		ChatID:       chatID,
		SenderID:     "sender-1",
		Content:      "later",
		ContentType:  model.ContentTypeText,
		Status:       model.MessageStatusSent,
		IsScheduled:  true,
		ScheduledFor: &scheduledFor,
		CreatedAt:    scheduledFor.Add(-time.Hour),
	}
}

func TestTickFiresDueMessage(t *testing.T) {
	msgs := new(mocks.MessageStore)
	chats := new(mocks.ChatStore)
	bcast := new(mocks.Broadcaster)
	s := newTestScheduler(msgs, chats, bcast, nil)

	fireAt := time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC)
	m := dueMessage("msg-1", "chat-1", fireAt)
	sent := m
	sent.ScheduledSent = true

	msgs.On("ListDue", mock.Anything, s.now()).Return([]model.Message{m}, nil)
	msgs.On("ClaimScheduled", mock.Anything, "msg-1").Return(true, nil)
	// Chat recency must follow the fire time, not creation time.
	chats.On("SetLastMessage", mock.Anything, "chat-1", "msg-1", fireAt).Return(nil)
	msgs.On("GetByID", mock.Anything, "msg-1").Return(&sent, nil)
	chats.On("GetMemberIDs", mock.Anything, "chat-1").Return([]string{"sender-1", "user-2"}, nil)
	bcast.On("BroadcastMessage", mock.Anything, &sent, []string{"sender-1", "user-2"}).Once()

	s.tick(context.Background())

	msgs.AssertExpectations(t)
	chats.AssertExpectations(t)
	bcast.AssertExpectations(t)
}

func TestTickLostClaimSkipsDelivery(t *testing.T) {
	msgs := new(mocks.MessageStore)
	chats := new(mocks.ChatStore)
	bcast := new(mocks.Broadcaster)
	s := newTestScheduler(msgs, chats, bcast, nil)

	m := dueMessage("msg-1", "chat-1", s.now().Add(-time.Minute))
	msgs.On("ListDue", mock.Anything, s.now()).Return([]model.Message{m}, nil)
	msgs.On("ClaimScheduled", mock.Anything, "msg-1").Return(false, nil)

	s.tick(context.Background())

	msgs.AssertExpectations(t)
	chats.AssertNotCalled(t, "SetLastMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	bcast.AssertNotCalled(t, "BroadcastMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestTickFailedMessageDoesNotBlockBatch(t *testing.T) {
	msgs := new(mocks.MessageStore)
	chats := new(mocks.ChatStore)
	bcast := new(mocks.Broadcaster)
	s := newTestScheduler(msgs, chats, bcast, nil)

	fireAt := s.now().Add(-time.Minute)
	m1 := dueMessage("msg-1", "chat-1", fireAt)
	m2 := dueMessage("msg-2", "chat-1", fireAt)
	sent2 := m2
	sent2.ScheduledSent = true

	msgs.On("ListDue", mock.Anything, s.now()).Return([]model.Message{m1, m2}, nil)
	msgs.On("ClaimScheduled", mock.Anything, "msg-1").Return(false, errors.New("connection reset"))
	msgs.On("ClaimScheduled", mock.Anything, "msg-2").Return(true, nil)
	chats.On("SetLastMessage", mock.Anything, "chat-1", "msg-2", fireAt).Return(nil)
	msgs.On("GetByID", mock.Anything, "msg-2").Return(&sent2, nil)
	chats.On("GetMemberIDs", mock.Anything, "chat-1").Return([]string{"sender-1"}, nil)
	bcast.On("BroadcastMessage", mock.Anything, &sent2, []string{"sender-1"}).Once()

	s.tick(context.Background())

	msgs.AssertExpectations(t)
	bcast.AssertExpectations(t)
}

func TestTickSkipsWhenLockHeldElsewhere(t *testing.T) {
	msgs := new(mocks.MessageStore)
	chats := new(mocks.ChatStore)
	bcast := new(mocks.Broadcaster)
	locker := new(mocks.Locker)
	s := newTestScheduler(msgs, chats, bcast, locker)

	locker.On("AcquireLock", mock.Anything, "scheduler", time.Minute).Return(false, nil)

	s.tick(context.Background())

	locker.AssertExpectations(t)
	msgs.AssertNotCalled(t, "ListDue", mock.Anything, mock.Anything)
}

func TestTickReleasesLockAfterRun(t *testing.T) {
	msgs := new(mocks.MessageStore)
	chats := new(mocks.ChatStore)
	bcast := new(mocks.Broadcaster)
	locker := new(mocks.Locker)
	s := newTestScheduler(msgs, chats, bcast, locker)

	locker.On("AcquireLock", mock.Anything, "scheduler", time.Minute).Return(true, nil)
	msgs.On("ListDue", mock.Anything, s.now()).Return(nil, nil)
	locker.On("ReleaseLock", mock.Anything, "scheduler").Return(nil)

	s.tick(context.Background())

	locker.AssertExpectations(t)
	msgs.AssertExpectations(t)
}
