// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers users, chatrooms, friendships, private sessions and message history

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.CreateUser(context.Background(), &User{Account: "alice", Username: "Alice", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	store.Close()

	store, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	name, err := store.DisplayName(context.Background(), "alice")
	if err != nil {
		t.Fatalf("DisplayName after reopen failed: %v", err)
	}
	if name != "Alice" {
		t.Errorf("DisplayName = %q, want %q", name, "Alice")
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("postgres", filepath.Join(t.TempDir(), "test.db"))
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpen_CgoDriver(t *testing.T) {
	store, err := Open(DriverCgo, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") {
			t.Skip("cgo sqlite3 driver unavailable in this build")
		}
		t.Fatalf("Open(sqlite3) failed: %v", err)
	}
	defer store.Close()

	createUsers(t, store, "alice", "bob")
	ps, err := store.GetOrCreatePrivateSession(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("GetOrCreatePrivateSession failed: %v", err)
	}
	if ps.AccountA != "alice" || ps.AccountB != "bob" {
		t.Errorf("pair = (%q, %q), want (alice, bob)", ps.AccountA, ps.AccountB)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	user := &User{Account: "alice", Username: "Alice", PasswordHash: "$argon2id$hash"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "Alice" {
		t.Errorf("Username = %q, want %q", got.Username, "Alice")
	}
	if got.PasswordHash != user.PasswordHash {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, user.PasswordHash)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	createUsers(t, store, "alice")

	err := store.CreateUser(ctx, &User{Account: "alice", Username: "Other", PasswordHash: "x"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if _, err := store.GetUser(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.DisplayName(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from DisplayName, got %v", err)
	}
}

func TestChatroomLifecycle(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	createUsers(t, store, "alice", "bob")

	room, err := store.CreateChatroom(ctx, "lobby", "alice")
	if err != nil {
		t.Fatalf("CreateChatroom failed: %v", err)
	}
	if room.ID == 0 {
		t.Fatal("room ID should be assigned")
	}

	member, err := store.IsMember(ctx, room.ID, "alice")
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !member {
		t.Error("creator should be a member")
	}

	if err := store.JoinChatroom(ctx, room.ID, "bob"); err != nil {
		t.Fatalf("JoinChatroom failed: %v", err)
	}
	if err := store.JoinChatroom(ctx, room.ID, "bob"); err != nil {
		t.Fatalf("second JoinChatroom should be a no-op, got %v", err)
	}

	rooms, err := store.ListChatrooms(ctx, "bob")
	if err != nil {
		t.Fatalf("ListChatrooms failed: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Name != "lobby" {
		t.Fatalf("ListChatrooms = %+v, want [lobby]", rooms)
	}

	left, err := store.LeaveChatroom(ctx, room.ID, "bob")
	if err != nil {
		t.Fatalf("LeaveChatroom failed: %v", err)
	}
	if !left {
		t.Error("first leave should report removal")
	}

	left, err = store.LeaveChatroom(ctx, room.ID, "bob")
	if err != nil {
		t.Fatalf("LeaveChatroom failed: %v", err)
	}
	if left {
		t.Error("leaving twice should report no removal")
	}
}

func TestJoinChatroom_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	createUsers(t, store, "alice")
	if err := store.JoinChatroom(context.Background(), 999, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFriendships(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	createUsers(t, store, "alice", "bob", "carol")

	if err := store.AddFriend(ctx, "alice", "bob"); err != nil {
		t.Fatalf("AddFriend failed: %v", err)
	}
	if err := store.AddFriend(ctx, "bob", "alice"); err != nil {
		t.Fatalf("re-adding friendship should be a no-op, got %v", err)
	}

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		ok, err := store.AreFriends(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("AreFriends failed: %v", err)
		}
		if !ok {
			t.Errorf("%s and %s should be friends", pair[0], pair[1])
		}
	}

	ok, _ := store.AreFriends(ctx, "alice", "carol")
	if ok {
		t.Error("alice and carol should not be friends")
	}

	friends, err := store.ListFriends(ctx, "bob")
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(friends) != 1 || friends[0].Account != "alice" {
		t.Errorf("ListFriends(bob) = %+v, want [alice]", friends)
	}
	if friends[0].PasswordHash != "" {
		t.Error("ListFriends should not load password hashes")
	}

	removed, err := store.RemoveFriend(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("RemoveFriend failed: %v", err)
	}
	if !removed {
		t.Error("RemoveFriend should report removal")
	}
	ok, _ = store.AreFriends(ctx, "alice", "bob")
	if ok {
		t.Error("friendship should be gone in both directions")
	}
}

func TestAddFriend_UnknownAccount(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	createUsers(t, store, "alice")
	if err := store.AddFriend(context.Background(), "alice", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetOrCreatePrivateSession_Canonical(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	createUsers(t, store, "alice", "bob")

	first, err := store.GetOrCreatePrivateSession(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("GetOrCreatePrivateSession failed: %v", err)
	}
	second, err := store.GetOrCreatePrivateSession(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreatePrivateSession failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("session IDs differ: %d vs %d", first.ID, second.ID)
	}
	if first.AccountA != "alice" || first.AccountB != "bob" {
		t.Errorf("pair = (%q, %q), want (alice, bob)", first.AccountA, first.AccountB)
	}

	got, err := store.GetPrivateSession(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetPrivateSession failed: %v", err)
	}
	if !got.Includes("bob") || got.Includes("carol") {
		t.Errorf("unexpected participants %+v", got)
	}
}

func TestGetOrCreatePrivateSession_Concurrent(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	createUsers(t, store, "alice", "bob")

	const workers = 8
	ids := make([]uint64, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			ps, err := store.GetOrCreatePrivateSession(ctx, a, b)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			ids[i] = ps.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("worker %d got session %d, worker 0 got %d", i, ids[i], ids[0])
		}
	}
}

func TestGetPrivateSession_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if _, err := store.GetPrivateSession(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	var lastID uint64
	for i, content := range []string{"one", "two", "three"} {
		id, err := store.AppendMessage(ctx, &MessageRecord{
			Kind:           KindRoom,
			ConversationID: 7,
			Sender:         "alice",
			Content:        content,
			SentAt:         base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if id <= lastID {
			t.Fatalf("message IDs not increasing: %d after %d", id, lastID)
		}
		lastID = id
	}

	// A message in another conversation must not leak into room 7.
	if _, err := store.AppendMessage(ctx, &MessageRecord{
		Kind: KindSession, ConversationID: 7, Sender: "bob", Content: "private", SentAt: base,
	}); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	msgs, err := store.ListMessages(ctx, MessageQuery{Kind: KindRoom, ConversationID: 7})
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Content != "three" || msgs[2].Content != "one" {
		t.Errorf("messages not newest first: %q ... %q", msgs[0].Content, msgs[2].Content)
	}
	if !msgs[2].SentAt.Equal(base) {
		t.Errorf("SentAt = %v, want %v", msgs[2].SentAt, base)
	}

	page, err := store.ListMessages(ctx, MessageQuery{
		Kind: KindRoom, ConversationID: 7, BeforeID: msgs[0].ID, Limit: 1,
	})
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(page) != 1 || page[0].Content != "two" {
		t.Errorf("page = %+v, want [two]", page)
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	return store
}

func createUsers(t *testing.T, s Store, accounts ...string) {
	t.Helper()
	for _, a := range accounts {
		if err := s.CreateUser(context.Background(), &User{Account: a, Username: a, PasswordHash: "hash"}); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", a, err)
		}
	}
}
