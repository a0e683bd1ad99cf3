// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject storage failures

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu         sync.RWMutex
	users      map[string]*User
	rooms      map[uint32]*Chatroom
	members    map[uint32]map[string]bool
	friends    map[string]map[string]bool
	sessions   map[uint64]*PrivateSession
	sessionIdx map[[2]string]uint64
	messages   []*MessageRecord
	nextRoom   uint32
	nextSess   uint64
	nextMsg    uint64
	attempts   int

	// AppendErr, when set, is returned by AppendMessage.
	AppendErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:      make(map[string]*User),
		rooms:      make(map[uint32]*Chatroom),
		members:    make(map[uint32]map[string]bool),
		friends:    make(map[string]map[string]bool),
		sessions:   make(map[uint64]*PrivateSession),
		sessionIdx: make(map[[2]string]uint64),
	}
}

// SetAppendError makes subsequent AppendMessage calls fail with err.
// Pass nil to restore normal behavior.
func (m *MockStore) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendErr = err
}

// CreateUser stores a new account.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Account]; ok {
		return ErrDuplicate
	}
	u := *user
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users[u.Account] = &u
	return nil
}

// GetUser retrieves an account.
func (m *MockStore) GetUser(ctx context.Context, account string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[account]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

// DisplayName returns the username for an account.
func (m *MockStore) DisplayName(ctx context.Context, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[account]
	if !ok {
		return "", ErrNotFound
	}
	return u.Username, nil
}

// CreateChatroom creates a room with its creator as a member.
func (m *MockStore) CreateChatroom(ctx context.Context, name, createdBy string) (*Chatroom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRoom++
	room := &Chatroom{ID: m.nextRoom, Name: name, CreatedBy: createdBy, CreatedAt: time.Now()}
	m.rooms[room.ID] = room
	m.members[room.ID] = map[string]bool{createdBy: true}

	result := *room
	return &result, nil
}

// GetChatroom retrieves a room.
func (m *MockStore) GetChatroom(ctx context.Context, id uint32) (*Chatroom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *room
	return &result, nil
}

// ListChatrooms returns the rooms account belongs to, ordered by ID.
func (m *MockStore) ListChatrooms(ctx context.Context, account string) ([]*Chatroom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rooms []*Chatroom
	for id, members := range m.members {
		if members[account] {
			room := *m.rooms[id]
			rooms = append(rooms, &room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

// JoinChatroom adds account to a room.
func (m *MockStore) JoinChatroom(ctx context.Context, id uint32, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[id]; !ok {
		return ErrNotFound
	}
	m.members[id][account] = true
	return nil
}

// LeaveChatroom removes account from a room.
func (m *MockStore) LeaveChatroom(ctx context.Context, id uint32, account string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.members[id]
	if !ok || !members[account] {
		return false, nil
	}
	delete(members, account)
	return true, nil
}

// IsMember reports room membership.
func (m *MockStore) IsMember(ctx context.Context, id uint32, account string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.members[id][account], nil
}

// AddFriend records a mutual friendship.
func (m *MockStore) AddFriend(ctx context.Context, a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a == b {
		return fmt.Errorf("cannot befriend self")
	}
	if _, ok := m.users[a]; !ok {
		return ErrNotFound
	}
	if _, ok := m.users[b]; !ok {
		return ErrNotFound
	}
	m.link(a, b)
	m.link(b, a)
	return nil
}

func (m *MockStore) link(from, to string) {
	if m.friends[from] == nil {
		m.friends[from] = make(map[string]bool)
	}
	m.friends[from][to] = true
}

// RemoveFriend deletes a friendship in both directions.
func (m *MockStore) RemoveFriend(ctx context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existed := m.friends[a][b] || m.friends[b][a]
	delete(m.friends[a], b)
	delete(m.friends[b], a)
	return existed, nil
}

// AreFriends reports whether a and b are friends.
func (m *MockStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.friends[a][b], nil
}

// ListFriends returns friends of account ordered by account.
func (m *MockStore) ListFriends(ctx context.Context, account string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*User
	for friend := range m.friends[account] {
		if u, ok := m.users[friend]; ok {
			cp := *u
			cp.PasswordHash = ""
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Account < result[j].Account })
	return result, nil
}

// GetOrCreatePrivateSession returns the session for an unordered pair.
func (m *MockStore) GetOrCreatePrivateSession(ctx context.Context, a, b string) (*PrivateSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lo, hi := orderPair(a, b)
	if lo == hi {
		return nil, fmt.Errorf("private session requires two distinct accounts")
	}
	if id, ok := m.sessionIdx[[2]string{lo, hi}]; ok {
		result := *m.sessions[id]
		return &result, nil
	}

	m.nextSess++
	ps := &PrivateSession{ID: m.nextSess, AccountA: lo, AccountB: hi, CreatedAt: time.Now()}
	m.sessions[ps.ID] = ps
	m.sessionIdx[[2]string{lo, hi}] = ps.ID

	result := *ps
	return &result, nil
}

// GetPrivateSession retrieves a session by ID.
func (m *MockStore) GetPrivateSession(ctx context.Context, id uint64) (*PrivateSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ps, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *ps
	return &result, nil
}

// AppendMessage stores a message unless AppendErr is set.
func (m *MockStore) AppendMessage(ctx context.Context, msg *MessageRecord) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	if m.AppendErr != nil {
		return 0, m.AppendErr
	}

	m.nextMsg++
	msg.ID = m.nextMsg
	cp := *msg
	m.messages = append(m.messages, &cp)
	return msg.ID, nil
}

// ListMessages returns a page of history, newest first.
func (m *MockStore) ListMessages(ctx context.Context, q MessageQuery) ([]*MessageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := clampLimit(q.Limit)
	var result []*MessageRecord
	for i := len(m.messages) - 1; i >= 0 && len(result) < limit; i-- {
		msg := m.messages[i]
		if msg.Kind != q.Kind || msg.ConversationID != q.ConversationID {
			continue
		}
		if q.BeforeID > 0 && msg.ID >= q.BeforeID {
			continue
		}
		cp := *msg
		result = append(result, &cp)
	}
	return result, nil
}

// AppendAttempts returns how many times AppendMessage was called,
// including failed calls.
func (m *MockStore) AppendAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// Messages returns every stored message in append order.
func (m *MockStore) Messages() []*MessageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*MessageRecord, len(m.messages))
	for i, msg := range m.messages {
		cp := *msg
		result[i] = &cp
	}
	return result
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
