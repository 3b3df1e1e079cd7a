package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwave/internal/logger"
	"github.com/chatwave/internal/model"
)

type StarredRepository struct {
	pool *pgxpool.Pool
}

func NewStarredRepository(pool *pgxpool.Pool) *StarredRepository {
	return &StarredRepository{pool: pool}
}

func (r *StarredRepository) Star(ctx context.Context, userID, messageID string) error {
	defer logger.DeferLogDuration("starred.Star", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO starred_messages (user_id, message_id, starred_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		userID, messageID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("starredRepo.Star: %w", err)
	}
	return nil
}

func (r *StarredRepository) Unstar(ctx context.Context, userID, messageID string) error {
	defer logger.DeferLogDuration("starred.Unstar", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM starred_messages WHERE user_id = $1 AND message_id = $2`,
		userID, messageID,
	)
	if err != nil {
		return fmt.Errorf("starredRepo.Unstar: %w", err)
	}
	return nil
}

// GetStarred lists the user's starred messages in a chat, newest first.
func (r *StarredRepository) GetStarred(ctx context.Context, userID, chatID string) ([]model.StarredMessage, error) {
	defer logger.DeferLogDuration("starred.GetStarred", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT sm.user_id, sm.message_id, sm.starred_at,
		        m.id, m.chat_id, m.sender_id, m.content, m.content_type, m.created_at,
		        u.id, u.username, u.avatar_url
		 FROM starred_messages sm
		 JOIN messages m ON m.id = sm.message_id
		 JOIN users u ON u.id = m.sender_id
		 WHERE sm.user_id = $1 AND m.chat_id = $2
		 ORDER BY m.created_at DESC`, userID, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("starredRepo.GetStarred query: %w", err)
	}
	defer rows.Close()

	stars := make([]model.StarredMessage, 0, 8)
	for rows.Next() {
		var s model.StarredMessage
		msg := &model.Message{}
		sender := &model.UserPublic{}
		if err := rows.Scan(&s.UserID, &s.MessageID, &s.StarredAt,
			&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.ContentType, &msg.CreatedAt,
			&sender.ID, &sender.Username, &sender.AvatarURL); err != nil {
			return nil, fmt.Errorf("starredRepo.GetStarred scan: %w", err)
		}
		msg.Sender = sender
		s.Message = msg
		stars = append(stars, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("starredRepo.GetStarred rows: %w", err)
	}
	return stars, nil
}
