// ABOUTME: Store interface and data types for chat persistence
// ABOUTME: Defines users, chatrooms, friendships, private sessions and messages

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with a unique key
var ErrDuplicate = errors.New("already exists")

// ConversationKind distinguishes the two places a message can live.
type ConversationKind string

const (
	KindRoom    ConversationKind = "room"
	KindSession ConversationKind = "session"
)

// User is a registered account. Account is the login identifier and
// Username is the display name shown to other users.
type User struct {
	Account      string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Chatroom is a named multi-party room.
type Chatroom struct {
	ID        uint32
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

// PrivateSession is a one-to-one conversation. AccountA always sorts
// before AccountB so that each unordered pair maps to a single row.
type PrivateSession struct {
	ID        uint64
	AccountA  string
	AccountB  string
	CreatedAt time.Time
}

// Includes reports whether account is one of the two participants.
func (p *PrivateSession) Includes(account string) bool {
	return p.AccountA == account || p.AccountB == account
}

// Peer returns the other participant, or "" if account is not a participant.
func (p *PrivateSession) Peer(account string) string {
	switch account {
	case p.AccountA:
		return p.AccountB
	case p.AccountB:
		return p.AccountA
	}
	return ""
}

// MessageRecord is a persisted chat message. ID is assigned by the store
// and increases monotonically.
type MessageRecord struct {
	ID             uint64
	Kind           ConversationKind
	ConversationID uint64
	Sender         string
	Content        string
	SentAt         time.Time
}

// MessageQuery selects a page of history. Messages are returned newest
// first; BeforeID of zero means start from the latest message.
type MessageQuery struct {
	Kind           ConversationKind
	ConversationID uint64
	BeforeID       uint64
	Limit          int
}

// Store defines the persistence operations used by the gateway.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, account string) (*User, error)
	DisplayName(ctx context.Context, account string) (string, error)

	// Chatrooms
	CreateChatroom(ctx context.Context, name, createdBy string) (*Chatroom, error)
	GetChatroom(ctx context.Context, id uint32) (*Chatroom, error)
	ListChatrooms(ctx context.Context, account string) ([]*Chatroom, error)
	JoinChatroom(ctx context.Context, id uint32, account string) error
	LeaveChatroom(ctx context.Context, id uint32, account string) (bool, error)
	IsMember(ctx context.Context, id uint32, account string) (bool, error)

	// Friends
	AddFriend(ctx context.Context, a, b string) error
	RemoveFriend(ctx context.Context, a, b string) (bool, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	ListFriends(ctx context.Context, account string) ([]*User, error)

	// Private sessions
	GetOrCreatePrivateSession(ctx context.Context, a, b string) (*PrivateSession, error)
	GetPrivateSession(ctx context.Context, id uint64) (*PrivateSession, error)

	// Messages
	AppendMessage(ctx context.Context, msg *MessageRecord) (uint64, error)
	ListMessages(ctx context.Context, q MessageQuery) ([]*MessageRecord, error)

	Close() error
}

// DefaultHistoryLimit is used when a MessageQuery has no positive limit.
const DefaultHistoryLimit = 50

// MaxHistoryLimit caps a single history page.
const MaxHistoryLimit = 500

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}

// orderPair returns the two accounts in canonical order.
func orderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
