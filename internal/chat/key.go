// ABOUTME: Conversation keys naming a chat room or a private session
// ABOUTME: Keys are comparable values used to index the conversation registry

package chat

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xiaozhu6-2-2/Chat/internal/store"
)

// Kind is the conversation namespace a Key lives in.
type Kind string

const (
	KindRoom    Kind = "room"
	KindSession Kind = "session"
)

// Key identifies one conversation. Rooms and private sessions have
// independent ID spaces, so room 7 and session 7 are different keys.
type Key struct {
	Kind Kind
	ID   uint64
}

// RoomKey returns the key for a chat room.
func RoomKey(id uint32) Key {
	return Key{Kind: KindRoom, ID: uint64(id)}
}

// SessionKey returns the key for a private session.
func SessionKey(id uint64) Key {
	return Key{Kind: KindSession, ID: id}
}

// IsRoom reports whether k names a chat room.
func (k Key) IsRoom() bool {
	return k.Kind == KindRoom
}

// RoomID returns the room ID. It is only meaningful when IsRoom is true.
func (k Key) RoomID() uint32 {
	return uint32(k.ID)
}

func (k Key) String() string {
	return string(k.Kind) + ":" + strconv.FormatUint(k.ID, 10)
}

// StoreKind maps the key's kind to its persisted form.
func (k Key) StoreKind() store.ConversationKind {
	if k.IsRoom() {
		return store.KindRoom
	}
	return store.KindSession
}

// ParseKey parses the String form of a Key, e.g. "room:7".
func ParseKey(s string) (Key, error) {
	kind, rawID, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("malformed conversation key %q", s)
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("malformed conversation id in %q: %w", s, err)
	}

	switch Kind(kind) {
	case KindRoom:
		if id > math.MaxUint32 {
			return Key{}, fmt.Errorf("room id out of range in %q", s)
		}
		return RoomKey(uint32(id)), nil
	case KindSession:
		return SessionKey(id), nil
	}
	return Key{}, fmt.Errorf("unknown conversation kind %q", kind)
}
