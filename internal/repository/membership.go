package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwave/internal/logger"
	"github.com/chatwave/internal/model"
)

// MembershipRepository owns the ordered membership event log. chat_members is
// the current state; this log is what history filtering reconstructs from.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

func (r *MembershipRepository) Record(ctx context.Context, chatID, userID string, kind model.MembershipEventKind, at time.Time) error {
	defer logger.DeferLogDuration("membership.Record", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_membership_events (chat_id, user_id, kind, occurred_at)
		 VALUES ($1, $2, $3, $4)`,
		chatID, userID, kind, at,
	)
	if err != nil {
		return fmt.Errorf("membershipRepo.Record: %w", err)
	}
	return nil
}

// EventsForChat returns the full ordered log for a chat.
func (r *MembershipRepository) EventsForChat(ctx context.Context, chatID string) ([]model.MembershipEvent, error) {
	defer logger.DeferLogDuration("membership.EventsForChat", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, chat_id, user_id, kind, occurred_at
		 FROM chat_membership_events
		 WHERE chat_id = $1
		 ORDER BY occurred_at, id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("membershipRepo.EventsForChat query: %w", err)
	}
	defer rows.Close()

	events := make([]model.MembershipEvent, 0, 16)
	for rows.Next() {
		var ev model.MembershipEvent
		if err := rows.Scan(&ev.ID, &ev.ChatID, &ev.UserID, &ev.Kind, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("membershipRepo.EventsForChat scan: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("membershipRepo.EventsForChat rows: %w", err)
	}
	return events, nil
}
