// ABOUTME: Chatroom and membership persistence for SQLiteStore
// ABOUTME: Room creation auto-joins the creator inside one transaction

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateChatroom creates a room and adds its creator as the first member.
func (s *SQLiteStore) CreateChatroom(ctx context.Context, name, createdBy string) (*Chatroom, error) {
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO chatrooms (name, created_by, created_at) VALUES (?, ?, ?)`,
		name, createdBy, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting chatroom: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading chatroom id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chatroom_members (chatroom_id, account, joined_at) VALUES (?, ?, ?)`,
		id, createdBy, formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("adding creator to chatroom: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing chatroom: %w", err)
	}

	return &Chatroom{
		ID:        uint32(id),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: now,
	}, nil
}

// GetChatroom retrieves a room by ID.
func (s *SQLiteStore) GetChatroom(ctx context.Context, id uint32) (*Chatroom, error) {
	var (
		room      Chatroom
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM chatrooms WHERE id = ?`, id,
	).Scan(&room.ID, &room.Name, &room.CreatedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying chatroom: %w", err)
	}
	room.CreatedAt = parseTime(createdAt)
	return &room, nil
}

// ListChatrooms returns the rooms an account belongs to, ordered by ID.
func (s *SQLiteStore) ListChatrooms(ctx context.Context, account string) ([]*Chatroom, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.created_by, c.created_at
		FROM chatrooms c
		JOIN chatroom_members m ON m.chatroom_id = c.id
		WHERE m.account = ?
		ORDER BY c.id`, account)
	if err != nil {
		return nil, fmt.Errorf("querying chatrooms: %w", err)
	}
	defer rows.Close()

	var rooms []*Chatroom
	for rows.Next() {
		var (
			room      Chatroom
			createdAt string
		)
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chatroom: %w", err)
		}
		room.CreatedAt = parseTime(createdAt)
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// JoinChatroom adds account to the room. Joining twice is a no-op.
// Returns ErrNotFound if the room does not exist.
func (s *SQLiteStore) JoinChatroom(ctx context.Context, id uint32, account string) error {
	if _, err := s.GetChatroom(ctx, id); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chatroom_members (chatroom_id, account, joined_at) VALUES (?, ?, ?)`,
		id, account, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("joining chatroom: %w", err)
	}
	return nil
}

// LeaveChatroom removes account from the room and reports whether a
// membership row was actually deleted.
func (s *SQLiteStore) LeaveChatroom(ctx context.Context, id uint32, account string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chatroom_members WHERE chatroom_id = ? AND account = ?`, id, account,
	)
	if err != nil {
		return false, fmt.Errorf("leaving chatroom: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// IsMember reports whether account belongs to the room.
func (s *SQLiteStore) IsMember(ctx context.Context, id uint32, account string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM chatroom_members WHERE chatroom_id = ? AND account = ?`, id, account,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying membership: %w", err)
	}
	return true, nil
}
