package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwave/internal/logger"
	"github.com/chatwave/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageColumns = `m.id, m.chat_id, m.sender_id, m.content, m.content_type, m.status,
	        m.is_scheduled, m.scheduled_for, m.scheduled_sent, m.edited_at, m.created_at,
	        u.id, u.username, u.avatar_url, u.is_online, u.last_seen_at,
	        COALESCE((SELECT array_agg(mh.user_id) FROM message_hidden mh WHERE mh.message_id = m.id), '{}'),
	        COALESCE((SELECT array_agg(me.user_id) FROM message_excluded me WHERE me.message_id = m.id), '{}'),
	        COALESCE((SELECT array_agg(mr.user_id) FROM message_reads mr WHERE mr.message_id = m.id), '{}'),
	        COALESCE((SELECT array_agg(rp.reply_to_id ORDER BY rp.ord) FROM message_replies rp WHERE rp.message_id = m.id), '{}'),
	        COALESCE((SELECT array_agg(mm.user_id) FROM message_mentions mm WHERE mm.message_id = m.id), '{}')`

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	sender := &model.UserPublic{}
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.ContentType, &m.Status,
		&m.IsScheduled, &m.ScheduledFor, &m.ScheduledSent, &m.EditedAt, &m.CreatedAt,
		&sender.ID, &sender.Username, &sender.AvatarURL, &sender.IsOnline, &sender.LastSeenAt,
		&m.HiddenFor, &m.ExcludedUsers, &m.ReadBy, &m.ReplyToIDs, &m.Mentions)
	if err != nil {
		return nil, err
	}
	m.Sender = sender
	return m, nil
}

// Create stores a message together with its attachments, reply refs, mentions
// and exclusion list. Each insert is its own statement; the message row goes
// first so a partial failure leaves a plain message, never orphaned children.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, content_type, status, is_scheduled, scheduled_for, scheduled_sent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.ChatID, m.SenderID, m.Content, m.ContentType, m.Status, m.IsScheduled, m.ScheduledFor, m.ScheduledSent, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	for i, a := range m.Attachments {
		id := a.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := r.pool.Exec(ctx,
			`INSERT INTO message_attachments (id, message_id, ord, file_url, file_name, file_size, mime_type)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, m.ID, i, a.FileURL, a.FileName, a.FileSize, a.MimeType,
		); err != nil {
			return fmt.Errorf("msgRepo.Create attachment: %w", err)
		}
	}
	for i, replyID := range m.ReplyToIDs {
		if _, err := r.pool.Exec(ctx,
			`INSERT INTO message_replies (message_id, reply_to_id, ord) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			m.ID, replyID, i,
		); err != nil {
			return fmt.Errorf("msgRepo.Create reply: %w", err)
		}
	}
	for _, uid := range m.Mentions {
		if _, err := r.pool.Exec(ctx,
			`INSERT INTO message_mentions (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			m.ID, uid,
		); err != nil {
			return fmt.Errorf("msgRepo.Create mention: %w", err)
		}
	}
	for _, uid := range m.ExcludedUsers {
		if _, err := r.pool.Exec(ctx,
			`INSERT INTO message_excluded (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			m.ID, uid,
		); err != nil {
			return fmt.Errorf("msgRepo.Create exclude: %w", err)
		}
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	if err := r.loadAttachments(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetChatMessages returns candidate messages for a chat in ascending creation
// order. Visibility filtering happens in the membership package; this query
// deliberately returns everything including hidden and pending-scheduled rows.
func (r *MessageRepository) GetChatMessages(ctx context.Context, chatID string, limit, offset int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.GetChatMessages", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.chat_id = $1
		 ORDER BY m.created_at
		 LIMIT $2 OFFSET $3`, chatID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetChatMessages query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("msgRepo.GetChatMessages scan: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.GetChatMessages rows: %w", err)
	}
	for i := range messages {
		if err := r.loadAttachments(ctx, &messages[i]); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

func (r *MessageRepository) loadAttachments(ctx context.Context, m *model.Message) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, file_url, file_name, file_size, COALESCE(mime_type,'')
		 FROM message_attachments WHERE message_id = $1 ORDER BY ord`, m.ID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.loadAttachments query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.FileURL, &a.FileName, &a.FileSize, &a.MimeType); err != nil {
			return fmt.Errorf("msgRepo.loadAttachments scan: %w", err)
		}
		m.Attachments = append(m.Attachments, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("msgRepo.loadAttachments rows: %w", err)
	}
	return nil
}

// ListDue returns scheduled messages whose fire time has passed and that are
// not yet marked sent.
func (r *MessageRepository) ListDue(ctx context.Context, now time.Time) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListDue", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.is_scheduled AND NOT m.scheduled_sent AND m.scheduled_for <= $1
		 ORDER BY m.scheduled_for`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListDue query: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0, 8)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("msgRepo.ListDue scan: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListDue rows: %w", err)
	}
	return msgs, nil
}

// ClaimScheduled flips scheduled_sent in a single conditional update. It
// returns false when another tick (or process) already claimed the message,
// which is what makes scheduler delivery at-most-once.
func (r *MessageRepository) ClaimScheduled(ctx context.Context, id string) (bool, error) {
	defer logger.DeferLogDuration("msg.ClaimScheduled", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET scheduled_sent = true
		 WHERE id = $1 AND is_scheduled AND NOT scheduled_sent`, id,
	)
	if err != nil {
		return false, fmt.Errorf("msgRepo.ClaimScheduled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListScheduledBySender returns the sender's own pending scheduled messages for
// a chat, ascending by fire time. Only the sender ever sees these.
func (r *MessageRepository) ListScheduledBySender(ctx context.Context, chatID, senderID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListScheduledBySender", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.chat_id = $1 AND m.sender_id = $2 AND m.is_scheduled AND NOT m.scheduled_sent
		 ORDER BY m.scheduled_for`, chatID, senderID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListScheduledBySender query: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0, 4)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("msgRepo.ListScheduledBySender scan: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListScheduledBySender rows: %w", err)
	}
	return msgs, nil
}

// UpdateScheduled edits a pending scheduled message. Once the scheduler fired
// it the edit loses the race and ErrAlreadySent is returned.
func (r *MessageRepository) UpdateScheduled(ctx context.Context, id, content string, scheduledFor time.Time) error {
	defer logger.DeferLogDuration("msg.UpdateScheduled", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET content = $1, scheduled_for = $2
		 WHERE id = $3 AND is_scheduled AND NOT scheduled_sent`,
		content, scheduledFor, id,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.UpdateScheduled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.scheduledMissReason(ctx, id)
	}
	return nil
}

// DeleteScheduled cancels a pending scheduled message. Once scheduled_sent is
// set, cancellation must fail rather than silently delete a sent message.
func (r *MessageRepository) DeleteScheduled(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("msg.DeleteScheduled", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM messages WHERE id = $1 AND is_scheduled AND NOT scheduled_sent`, id,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.DeleteScheduled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.scheduledMissReason(ctx, id)
	}
	return nil
}

// scheduledMissReason distinguishes "already sent" from "not found" after a
// conditional scheduled update matched no rows.
func (r *MessageRepository) scheduledMissReason(ctx context.Context, id string) error {
	var sent bool
	err := r.pool.QueryRow(ctx,
		`SELECT scheduled_sent FROM messages WHERE id = $1`, id,
	).Scan(&sent)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("msgRepo.scheduledMissReason: %w", err)
	}
	if sent {
		return ErrAlreadySent
	}
	return ErrNotFound
}

// MarkDelivered moves a single message sent -> delivered. Only a recipient can
// acknowledge and the transition is monotonic: attempts by the sender or on an
// already delivered/read message are no-ops.
func (r *MessageRepository) MarkDelivered(ctx context.Context, messageID, userID string) error {
	defer logger.DeferLogDuration("msg.MarkDelivered", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'delivered'
		 WHERE id = $1 AND sender_id != $2 AND status = 'sent'`,
		messageID, userID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkDelivered: %w", err)
	}
	return nil
}

// MarkChatRead is the bulk read for personal chats: every message not sent by
// the caller and not already read flips to read.
func (r *MessageRepository) MarkChatRead(ctx context.Context, chatID, userID string) error {
	defer logger.DeferLogDuration("msg.MarkChatRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'read'
		 WHERE chat_id = $1 AND sender_id != $2 AND status != 'read'
		   AND NOT (is_scheduled AND NOT scheduled_sent)`,
		chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkChatRead: %w", err)
	}
	return nil
}

// AddGroupReads records the caller in read_by for every qualifying message of
// a group chat, then flips status to read on messages whose read set now
// covers all current members. Completeness is against current membership, not
// the historical interval model used for visibility; a member who left no
// longer blocks it. Known inconsistency, kept deliberately.
func (r *MessageRepository) AddGroupReads(ctx context.Context, chatID, userID string, at time.Time) error {
	defer logger.DeferLogDuration("msg.AddGroupReads", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO message_reads (message_id, user_id, read_at)
		 SELECT m.id, $2, $3 FROM messages m
		 WHERE m.chat_id = $1 AND m.sender_id != $2
		   AND NOT (m.is_scheduled AND NOT m.scheduled_sent)
		 ON CONFLICT DO NOTHING`,
		chatID, userID, at,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.AddGroupReads insert: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE messages m SET status = 'read'
		 WHERE m.chat_id = $1 AND m.status != 'read'
		   AND NOT EXISTS (
		       SELECT 1 FROM chat_members cm
		       WHERE cm.chat_id = m.chat_id
		         AND NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = m.id AND mr.user_id = cm.user_id)
		         AND cm.user_id != m.sender_id)`,
		chatID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.AddGroupReads promote: %w", err)
	}
	return nil
}

// HideForUser soft-deletes a message for one viewer only.
func (r *MessageRepository) HideForUser(ctx context.Context, messageID, userID string) error {
	defer logger.DeferLogDuration("msg.HideForUser", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO message_hidden (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		messageID, userID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.HideForUser: %w", err)
	}
	return nil
}

// UpdateContent edits a message's content and sets edited_at.
func (r *MessageRepository) UpdateContent(ctx context.Context, id, content string, editedAt time.Time) error {
	defer logger.DeferLogDuration("msg.UpdateContent", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET content = $1, edited_at = $2 WHERE id = $3`,
		content, editedAt, id,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.UpdateContent: %w", err)
	}
	return nil
}

// HardDelete removes the message for everyone; child rows cascade.
func (r *MessageRepository) HardDelete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("msg.HardDelete", time.Now())()
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("msgRepo.HardDelete: %w", err)
	}
	return nil
}
