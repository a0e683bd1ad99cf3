// ABOUTME: Sentinel errors of the chat core
// ABOUTME: Mapped to HTTP statuses and close reasons by the transport layers

package chat

import "errors"

// Errors surfaced at the boundaries of the chat core. Callers wrap them
// with context and test with errors.Is.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTransport          = errors.New("transport error")
)

// Reasons an inbound payload is dropped without being stored.
var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
	ErrDuplicate      = errors.New("duplicate message")
)

// ErrClosed is returned by a closed Registry or Subscription.
var ErrClosed = errors.New("closed")
