// Package scheduler fires scheduled messages. It polls the database on a fixed
// interval rather than keeping in-process timers: a restart loses nothing, and
// a message whose fire time passed while the service was down is picked up on
// the first tick after startup.
package scheduler

import (
	"context"
	"time"

	"github.com/chatwave/internal/logger"
	"github.com/chatwave/internal/model"
)

const (
	DefaultInterval = 60 * time.Second
	lockName        = "scheduler"
)

// MessageStore is the subset of the message repository the scheduler needs.
type MessageStore interface {
	ListDue(ctx context.Context, now time.Time) ([]model.Message, error)
	ClaimScheduled(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Message, error)
}

// ChatStore is the subset of the chat repository the scheduler needs.
type ChatStore interface {
	SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error
	GetMemberIDs(ctx context.Context, chatID string) ([]string, error)
}

// Broadcaster delivers a fired message to connected sessions. The hub
// implements it; tests substitute a mock.
type Broadcaster interface {
	BroadcastMessage(ctx context.Context, m *model.Message, memberIDs []string)
}

// Locker provides the best-effort cross-replica lock. A lost lock only costs
// a skipped tick; the conditional claim in MessageStore is what actually
// guarantees at-most-once firing.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

type Scheduler struct {
	msgs     MessageStore
	chats    ChatStore
	bcast    Broadcaster
	locker   Locker
	interval time.Duration
	now      func() time.Time
}

func New(msgs MessageStore, chats ChatStore, bcast Broadcaster, locker Locker, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		msgs:     msgs,
		chats:    chats,
		bcast:    bcast,
		locker:   locker,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled. The first tick happens immediately so
// messages that came due while the service was down fire without waiting a
// full interval.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Infof("scheduler started, interval=%s", s.interval)
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer logger.DeferLogDuration("scheduler.tick", time.Now())()

	if s.locker != nil {
		ok, err := s.locker.AcquireLock(ctx, lockName, s.interval)
		if err != nil {
			logger.Errorf("scheduler acquire lock: %v", err)
			return
		}
		if !ok {
			return
		}
		defer func() {
			if err := s.locker.ReleaseLock(ctx, lockName); err != nil {
				logger.Errorf("scheduler release lock: %v", err)
			}
		}()
	}

	now := s.now()
	due, err := s.msgs.ListDue(ctx, now)
	if err != nil {
		logger.Errorf("scheduler list due: %v", err)
		return
	}

	for i := range due {
		// A failed message must not block the rest of the batch.
		if err := s.fire(ctx, &due[i]); err != nil {
			logger.Errorf("scheduler fire message=%s: %v", due[i].ID, err)
		}
	}
}

// fire claims one due message and delivers it. The claim is a conditional
// update: a second tick or replica racing on the same message loses the claim
// and skips it, so each message fires at most once.
func (s *Scheduler) fire(ctx context.Context, m *model.Message) error {
	claimed, err := s.msgs.ClaimScheduled(ctx, m.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	fireAt := m.CreatedAt
	if m.ScheduledFor != nil {
		fireAt = *m.ScheduledFor
	}

	// Chat list recency follows the fire time, not the creation time.
	if err := s.chats.SetLastMessage(ctx, m.ChatID, m.ID, fireAt); err != nil {
		logger.Errorf("scheduler bump chat=%s: %v", m.ChatID, err)
	}

	// Refetch so the broadcast payload carries the post-claim state
	// (scheduled_sent set, current read/exclusion sets).
	sent, err := s.msgs.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}

	memberIDs, err := s.chats.GetMemberIDs(ctx, m.ChatID)
	if err != nil {
		return err
	}

	s.bcast.BroadcastMessage(ctx, sent, memberIDs)
	logger.Infof("scheduler fired message=%s chat=%s", m.ID, m.ChatID)
	return nil
}
