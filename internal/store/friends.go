// ABOUTME: Friendship persistence for SQLiteStore
// ABOUTME: Friendships are mutual and stored as two directed rows

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddFriend makes a and b friends of each other. Adding an existing
// friendship is a no-op. Returns ErrNotFound if either account is unknown.
func (s *SQLiteStore) AddFriend(ctx context.Context, a, b string) error {
	if a == b {
		return fmt.Errorf("cannot befriend self")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, acct := range []string{a, b} {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE account = ?`, acct).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("querying user: %w", err)
		}
	}

	now := formatTime(time.Now())
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO friendships (account, friend, created_at) VALUES (?, ?, ?)`,
			pair[0], pair[1], now,
		); err != nil {
			return fmt.Errorf("inserting friendship: %w", err)
		}
	}

	return tx.Commit()
}

// RemoveFriend deletes the friendship in both directions and reports
// whether one existed.
func (s *SQLiteStore) RemoveFriend(ctx context.Context, a, b string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM friendships WHERE (account = ? AND friend = ?) OR (account = ? AND friend = ?)`,
		a, b, b, a,
	)
	if err != nil {
		return false, fmt.Errorf("deleting friendship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// AreFriends reports whether a and b are friends.
func (s *SQLiteStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM friendships WHERE account = ? AND friend = ?`, a, b,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying friendship: %w", err)
	}
	return true, nil
}

// ListFriends returns the friends of account ordered by account.
// Password hashes are not loaded.
func (s *SQLiteStore) ListFriends(ctx context.Context, account string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.account, u.username, u.created_at
		FROM friendships f
		JOIN users u ON u.account = f.friend
		WHERE f.account = ?
		ORDER BY u.account`, account)
	if err != nil {
		return nil, fmt.Errorf("querying friends: %w", err)
	}
	defer rows.Close()

	var friends []*User
	for rows.Next() {
		var (
			u         User
			createdAt string
		)
		if err := rows.Scan(&u.Account, &u.Username, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		u.CreatedAt = parseTime(createdAt)
		friends = append(friends, &u)
	}
	return friends, rows.Err()
}
