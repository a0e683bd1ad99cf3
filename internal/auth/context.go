// ABOUTME: Authenticated identity and its propagation through request handlers
// ABOUTME: Provides WithIdentity/FromContext for carrying the caller via context

package auth

import (
	"context"
	"time"
)

// Identity is an authenticated account, established from a verified token.
type Identity struct {
	Account   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the identity from the context.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// MustFromContext retrieves the identity from the context, panicking if not present.
func MustFromContext(ctx context.Context) Identity {
	id, ok := FromContext(ctx)
	if !ok {
		panic("auth: Identity not found in context")
	}
	return id
}
