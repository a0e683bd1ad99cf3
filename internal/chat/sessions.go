// ABOUTME: Private session resolution between two friends
// ABOUTME: Maps an unordered account pair to one stable session key

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xiaozhu6-2-2/Chat/internal/store"
)

// SessionResolver finds or creates the private session for a pair of friends.
type SessionResolver struct {
	store  Store
	logger *slog.Logger
}

// NewSessionResolver creates a resolver. Pass nil logger for default.
func NewSessionResolver(s Store, logger *slog.Logger) *SessionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionResolver{
		store:  s,
		logger: logger.With("component", "sessions"),
	}
}

// CanonicalPair orders two accounts so that every unordered pair has a
// single representation.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Resolve returns the session key for a and b. The result is the same for
// (a, b) and (b, a). The two accounts must be distinct friends; otherwise
// ErrForbidden is returned and nothing is created.
func (r *SessionResolver) Resolve(ctx context.Context, a, b string) (Key, error) {
	if a == b {
		return Key{}, fmt.Errorf("%w: private session with self", ErrForbidden)
	}

	friends, err := r.store.AreFriends(ctx, a, b)
	if err != nil {
		return Key{}, fmt.Errorf("%w: checking friendship: %v", ErrStorageUnavailable, err)
	}
	if !friends {
		return Key{}, fmt.Errorf("%w: %s and %s are not friends", ErrForbidden, a, b)
	}

	lo, hi := CanonicalPair(a, b)
	ps, err := r.store.GetOrCreatePrivateSession(ctx, lo, hi)
	if err != nil {
		return Key{}, fmt.Errorf("%w: resolving session: %v", ErrStorageUnavailable, err)
	}

	r.logger.Debug("private session resolved", "session_id", ps.ID, "a", lo, "b", hi)
	return SessionKey(ps.ID), nil
}

// Authorize checks that account participates in the session and that the
// two participants are still friends, then returns the session key.
func (r *SessionResolver) Authorize(ctx context.Context, account string, sessionID uint64) (Key, error) {
	ps, err := r.store.GetPrivateSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return Key{}, fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
	}
	if err != nil {
		return Key{}, fmt.Errorf("%w: loading session: %v", ErrStorageUnavailable, err)
	}
	if !ps.Includes(account) {
		return Key{}, fmt.Errorf("%w: %s is not in session %d", ErrForbidden, account, sessionID)
	}

	friends, err := r.store.AreFriends(ctx, ps.AccountA, ps.AccountB)
	if err != nil {
		return Key{}, fmt.Errorf("%w: checking friendship: %v", ErrStorageUnavailable, err)
	}
	if !friends {
		return Key{}, fmt.Errorf("%w: %s and %s are no longer friends", ErrForbidden, ps.AccountA, ps.AccountB)
	}
	return SessionKey(ps.ID), nil
}
