// Package mocks provides testify mocks for the narrow interfaces consumed by
// the scheduler and hub-facing code.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/chatwave/internal/model"
)

type MessageStore struct {
	mock.Mock
}

func (m *MessageStore) ListDue(ctx context.Context, now time.Time) ([]model.Message, error) {
	args := m.Called(ctx, now)
	var msgs []model.Message
	if args.Get(0) != nil {
		msgs = args.Get(0).([]model.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageStore) ClaimScheduled(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MessageStore) GetByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	var msg *model.Message
	if args.Get(0) != nil {
		msg = args.Get(0).(*model.Message)
	}
	return msg, args.Error(1)
}

type ChatStore struct {
	mock.Mock
}

func (m *ChatStore) SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	args := m.Called(ctx, chatID, messageID, at)
	return args.Error(0)
}

func (m *ChatStore) GetMemberIDs(ctx context.Context, chatID string) ([]string, error) {
	args := m.Called(ctx, chatID)
	var ids []string
	if args.Get(0) != nil {
		ids = args.Get(0).([]string)
	}
	return ids, args.Error(1)
}

type Broadcaster struct {
	mock.Mock
}

func (m *Broadcaster) BroadcastMessage(ctx context.Context, msg *model.Message, memberIDs []string) {
	m.Called(ctx, msg, memberIDs)
}

type Locker struct {
	mock.Mock
}

func (m *Locker) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, name, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *Locker) ReleaseLock(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}
