// ABOUTME: Message persistence for SQLiteStore
// ABOUTME: Appends assign monotonically increasing IDs; history pages newest first

package store

import (
	"context"
	"fmt"
)

// AppendMessage stores msg and returns its assigned ID. msg.ID is updated.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *MessageRecord) (uint64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation, conversation_id, sender, content, sent_at) VALUES (?, ?, ?, ?, ?)`,
		string(msg.Kind), msg.ConversationID, msg.Sender, msg.Content, formatTime(msg.SentAt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading message id: %w", err)
	}

	msg.ID = uint64(id)
	return msg.ID, nil
}

// ListMessages returns up to q.Limit messages of one conversation, newest
// first, with IDs strictly below q.BeforeID when it is set.
func (s *SQLiteStore) ListMessages(ctx context.Context, q MessageQuery) ([]*MessageRecord, error) {
	query := `
		SELECT id, conversation, conversation_id, sender, content, sent_at
		FROM messages
		WHERE conversation = ? AND conversation_id = ?`
	args := []any{string(q.Kind), q.ConversationID}

	if q.BeforeID > 0 {
		query += ` AND id < ?`
		args = append(args, q.BeforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, clampLimit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*MessageRecord
	for rows.Next() {
		var (
			m      MessageRecord
			kind   string
			sentAt string
		)
		if err := rows.Scan(&m.ID, &kind, &m.ConversationID, &m.Sender, &m.Content, &sentAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Kind = ConversationKind(kind)
		m.SentAt = parseTime(sentAt)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
