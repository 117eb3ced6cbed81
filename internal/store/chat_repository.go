// ABOUTME: Typed CRUD over chat messages plus session-scoped queries
// ABOUTME: Maps rows to the ChatMessage model and back

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ChatRepository implements Repository[ChatMessage] over a bound DataAccess.
type ChatRepository struct {
	access DataAccess
}

// NewChatRepository wires a chat message repository over the given access.
func NewChatRepository(access DataAccess) *ChatRepository {
	return &ChatRepository{access: access}
}

const chatColumns = `id, user_id, session_id, role, text, created_at`

// Add inserts the message and returns the store-assigned ID.
func (r *ChatRepository) Add(ctx context.Context, msg ChatMessage) (int64, error) {
	var id int64
	err := r.access.WithRetry(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chat_history (user_id, session_id, role, text) VALUES (?, ?, ?, ?)`,
			msg.UserID, msg.SessionID, msg.Role, msg.Text)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("adding chat message: %w", err)
	}
	return id, nil
}

// GetByID returns the message with the given ID, or ErrNotFound.
func (r *ChatRepository) GetByID(ctx context.Context, id int64) (ChatMessage, error) {
	rows, err := r.access.Query(ctx,
		`SELECT `+chatColumns+` FROM chat_history WHERE id = ?`, id)
	if err != nil {
		return ChatMessage{}, err
	}
	if len(rows) == 0 {
		return ChatMessage{}, ErrNotFound
	}
	return chatMessageFromRow(rows[0])
}

// Update replaces all mutable fields of the row matching the entity's ID.
// Returns ErrNotFound if no such row exists.
func (r *ChatRepository) Update(ctx context.Context, msg ChatMessage) error {
	affected, err := r.access.ExecWithRetry(ctx,
		`UPDATE chat_history SET session_id = ?, role = ?, text = ? WHERE id = ?`,
		msg.SessionID, msg.Role, msg.Text, msg.ID)
	if err != nil {
		return fmt.Errorf("updating chat message %d: %w", msg.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the message with the given ID, or fails with ErrNotFound.
func (r *ChatRepository) Delete(ctx context.Context, id int64) error {
	affected, err := r.access.ExecWithRetry(ctx, `DELETE FROM chat_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting chat message %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAll returns every message, in insertion order.
func (r *ChatRepository) GetAll(ctx context.Context) ([]ChatMessage, error) {
	rows, err := r.access.Query(ctx, `SELECT `+chatColumns+` FROM chat_history ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return chatMessagesFromRows(rows)
}

// MessagesBySession returns one user's messages in a session, in insertion
// order.
func (r *ChatRepository) MessagesBySession(ctx context.Context, userID int64, sessionID string) ([]ChatMessage, error) {
	rows, err := r.access.Query(ctx,
		`SELECT `+chatColumns+` FROM chat_history
		 WHERE user_id = ? AND session_id = ?
		 ORDER BY id`, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return chatMessagesFromRows(rows)
}

// DeleteBySession removes all of a user's messages in a session. Returns
// ErrNotFound if nothing matched.
func (r *ChatRepository) DeleteBySession(ctx context.Context, userID int64, sessionID string) error {
	affected, err := r.access.ExecWithRetry(ctx,
		`DELETE FROM chat_history WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session %q history: %w", sessionID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Sessions returns the distinct session IDs a user has messages in.
func (r *ChatRepository) Sessions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.access.Query(ctx,
		`SELECT DISTINCT session_id FROM chat_history WHERE user_id = ? ORDER BY session_id`, userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]string, 0, len(rows))
	for _, row := range rows {
		if s, ok := row["session_id"].(string); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func chatMessagesFromRows(rows []map[string]any) ([]ChatMessage, error) {
	messages := make([]ChatMessage, 0, len(rows))
	for _, row := range rows {
		msg, err := chatMessageFromRow(row)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func chatMessageFromRow(row map[string]any) (ChatMessage, error) {
	var msg ChatMessage
	var err error

	msg.ID, _ = row["id"].(int64)
	msg.UserID, _ = row["user_id"].(int64)
	msg.SessionID, _ = row["session_id"].(string)
	msg.Role, _ = row["role"].(string)
	msg.Text, _ = row["text"].(string)

	if raw, ok := row["created_at"].(string); ok {
		msg.CreatedAt, err = time.Parse(sqliteTimeLayout, raw)
		if err != nil {
			return ChatMessage{}, fmt.Errorf("parsing message created_at: %w", err)
		}
	}
	return msg, nil
}

var _ Repository[ChatMessage] = (*ChatRepository)(nil)
