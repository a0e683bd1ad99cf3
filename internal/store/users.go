// ABOUTME: User account persistence for SQLiteStore
// ABOUTME: Handles registration records and display-name lookups

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateUser inserts a new account. Returns ErrDuplicate if the account exists.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (account, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.Account, user.Username, user.PasswordHash, formatTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser retrieves an account by its identifier.
func (s *SQLiteStore) GetUser(ctx context.Context, account string) (*User, error) {
	var (
		u         User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT account, username, password_hash, created_at FROM users WHERE account = ?`,
		account,
	).Scan(&u.Account, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// DisplayName returns the username for an account, or ErrNotFound.
func (s *SQLiteStore) DisplayName(ctx context.Context, account string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT username FROM users WHERE account = ?`, account).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying display name: %w", err)
	}
	return name, nil
}
