// ABOUTME: Private session persistence for SQLiteStore
// ABOUTME: One row per unordered account pair, created on first use

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetOrCreatePrivateSession returns the session for the pair, creating it
// if needed. Argument order does not matter.
func (s *SQLiteStore) GetOrCreatePrivateSession(ctx context.Context, a, b string) (*PrivateSession, error) {
	lo, hi := orderPair(a, b)
	if lo == hi {
		return nil, fmt.Errorf("private session requires two distinct accounts")
	}

	// INSERT OR IGNORE makes concurrent first use converge on one row.
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO private_sessions (account_a, account_b, created_at) VALUES (?, ?, ?)`,
		lo, hi, formatTime(time.Now()),
	); err != nil {
		return nil, fmt.Errorf("inserting private session: %w", err)
	}

	return s.scanSession(s.db.QueryRowContext(ctx,
		`SELECT id, account_a, account_b, created_at FROM private_sessions WHERE account_a = ? AND account_b = ?`,
		lo, hi,
	))
}

// GetPrivateSession retrieves a session by ID.
func (s *SQLiteStore) GetPrivateSession(ctx context.Context, id uint64) (*PrivateSession, error) {
	return s.scanSession(s.db.QueryRowContext(ctx,
		`SELECT id, account_a, account_b, created_at FROM private_sessions WHERE id = ?`, id,
	))
}

func (s *SQLiteStore) scanSession(row *sql.Row) (*PrivateSession, error) {
	var (
		ps        PrivateSession
		createdAt string
	)
	err := row.Scan(&ps.ID, &ps.AccountA, &ps.AccountB, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying private session: %w", err)
	}
	ps.CreatedAt = parseTime(createdAt)
	return &ps, nil
}
