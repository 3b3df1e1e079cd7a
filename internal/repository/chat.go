package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwave/internal/logger"
	"github.com/chatwave/internal/model"
)

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) Create(ctx context.Context, c *model.Chat) error {
	defer logger.DeferLogDuration("chat.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chats (id, chat_type, name, description, avatar_url, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		c.ID, c.ChatType, c.Name, c.Description, c.AvatarURL, c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.Create: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByID", time.Now())()
	c := &model.Chat{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, chat_type, name, COALESCE(description,''), avatar_url, created_by, last_message_id, created_at, updated_at
		 FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.ChatType, &c.Name, &c.Description, &c.AvatarURL, &c.CreatedBy, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetByID: %w", err)
	}
	return c, nil
}

func (r *ChatRepository) UpdateChat(ctx context.Context, id, name, description, avatarURL string) error {
	defer logger.DeferLogDuration("chat.UpdateChat", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE chats SET name = $1, description = $2, avatar_url = $3 WHERE id = $4`,
		name, description, avatarURL, id,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.UpdateChat: %w", err)
	}
	return nil
}

// SetLastMessage points the chat at its newest message and bumps updated_at so
// recency-sorted chat lists reorder. It also clears per-user chat soft deletes:
// a hidden chat revives for everyone when a new message arrives.
func (r *ChatRepository) SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	defer logger.DeferLogDuration("chat.SetLastMessage", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE chats SET last_message_id = $1, updated_at = $2 WHERE id = $3`,
		messageID, at, chatID,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.SetLastMessage: %w", err)
	}
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM chat_hidden WHERE chat_id = $1`, chatID,
	); err != nil {
		return fmt.Errorf("chatRepo.SetLastMessage unhide: %w", err)
	}
	return nil
}

func (r *ChatRepository) AddMember(ctx context.Context, m *model.ChatMember) error {
	defer logger.DeferLogDuration("chat.AddMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_members (chat_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		m.ChatID, m.UserID, m.Role, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.AddMember: %w", err)
	}
	return nil
}

func (r *ChatRepository) RemoveMember(ctx context.Context, chatID, userID string) error {
	defer logger.DeferLogDuration("chat.RemoveMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM chat_members WHERE chat_id = $1 AND user_id = $2`,
		chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.RemoveMember: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetMembers(ctx context.Context, chatID string) ([]model.User, error) {
	defer logger.DeferLogDuration("chat.GetMembers", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.username, u.avatar_url, u.is_online, u.last_seen_at, u.created_at
		 FROM users u
		 JOIN chat_members cm ON cm.user_id = u.id
		 WHERE cm.chat_id = $1
		 ORDER BY cm.joined_at`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetMembers query: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, 8)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.AvatarURL, &u.IsOnline, &u.LastSeenAt, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatRepo.GetMembers scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.GetMembers rows: %w", err)
	}
	return users, nil
}

func (r *ChatRepository) GetMemberIDs(ctx context.Context, chatID string) ([]string, error) {
	defer logger.DeferLogDuration("chat.GetMemberIDs", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM chat_members WHERE chat_id = $1`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetMemberIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("chatRepo.GetMemberIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.GetMemberIDs rows: %w", err)
	}
	return ids, nil
}

func (r *ChatRepository) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	defer logger.DeferLogDuration("chat.IsMember", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`,
		chatID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("chatRepo.IsMember: %w", err)
	}
	return exists, nil
}

func (r *ChatRepository) GetMemberRole(ctx context.Context, chatID, userID string) (string, error) {
	defer logger.DeferLogDuration("chat.GetMemberRole", time.Now())()
	var role string
	err := r.pool.QueryRow(ctx,
		`SELECT role FROM chat_members WHERE chat_id = $1 AND user_id = $2`,
		chatID, userID,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("chatRepo.GetMemberRole: %w", err)
	}
	return role, nil
}

// GetUserChats lists the user's chats newest-activity first, skipping chats the
// user has soft-deleted (until a new message revives them).
func (r *ChatRepository) GetUserChats(ctx context.Context, userID string) ([]model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetUserChats", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.chat_type, c.name, COALESCE(c.description,''), c.avatar_url, c.created_by, c.last_message_id, c.created_at, c.updated_at
		 FROM chats c
		 JOIN chat_members cm ON cm.chat_id = c.id
		 WHERE cm.user_id = $1
		   AND NOT EXISTS (SELECT 1 FROM chat_hidden ch WHERE ch.chat_id = c.id AND ch.user_id = $1)
		 ORDER BY c.updated_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetUserChats query: %w", err)
	}
	defer rows.Close()

	chats := make([]model.Chat, 0, 16)
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.ChatType, &c.Name, &c.Description, &c.AvatarURL, &c.CreatedBy, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("chatRepo.GetUserChats scan: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.GetUserChats rows: %w", err)
	}
	return chats, nil
}

// FindPersonalChat returns the single personal chat for the unordered user pair.
func (r *ChatRepository) FindPersonalChat(ctx context.Context, userID1, userID2 string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.FindPersonalChat", time.Now())()
	c := &model.Chat{}
	err := r.pool.QueryRow(ctx,
		`SELECT c.id, c.chat_type, c.name, COALESCE(c.description,''), c.avatar_url, c.created_by, c.last_message_id, c.created_at, c.updated_at
		 FROM chats c
		 WHERE c.chat_type = 'personal'
		   AND EXISTS (SELECT 1 FROM chat_members WHERE chat_id = c.id AND user_id = $1)
		   AND EXISTS (SELECT 1 FROM chat_members WHERE chat_id = c.id AND user_id = $2)`,
		userID1, userID2,
	).Scan(&c.ID, &c.ChatType, &c.Name, &c.Description, &c.AvatarURL, &c.CreatedBy, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.FindPersonalChat: %w", err)
	}
	return c, nil
}

// HideForUser soft-deletes the chat for one user only.
func (r *ChatRepository) HideForUser(ctx context.Context, chatID, userID string) error {
	defer logger.DeferLogDuration("chat.HideForUser", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_hidden (chat_id, user_id, hidden_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		chatID, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("chatRepo.HideForUser: %w", err)
	}
	return nil
}

// UpdateMemberLastRead updates the last_read_at timestamp for a member.
func (r *ChatRepository) UpdateMemberLastRead(ctx context.Context, chatID, userID string, t time.Time) error {
	defer logger.DeferLogDuration("chat.UpdateMemberLastRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE chat_members SET last_read_at = $1 WHERE chat_id = $2 AND user_id = $3`,
		t, chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.UpdateMemberLastRead: %w", err)
	}
	return nil
}

// GetUnreadCount counts messages in a chat created after the user's last_read_at.
func (r *ChatRepository) GetUnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	defer logger.DeferLogDuration("chat.GetUnreadCount", time.Now())()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 JOIN chat_members cm ON cm.chat_id = m.chat_id AND cm.user_id = $2
		 WHERE m.chat_id = $1 AND m.sender_id != $2
		   AND m.created_at > cm.last_read_at
		   AND NOT (m.is_scheduled AND NOT m.scheduled_sent)
		   AND NOT EXISTS (SELECT 1 FROM message_hidden mh WHERE mh.message_id = m.id AND mh.user_id = $2)
		   AND NOT EXISTS (SELECT 1 FROM message_excluded me WHERE me.message_id = m.id AND me.user_id = $2)`,
		chatID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("chatRepo.GetUnreadCount: %w", err)
	}
	return count, nil
}
