// ABOUTME: Events delivered to subscribers of a conversation
// ABOUTME: Text messages and online_list presence snapshots share one wire shape

package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType discriminates event payloads on the wire.
type MessageType string

const (
	TypeText       MessageType = "text"
	TypeOnlineList MessageType = "online_list"
)

// SystemAccount is the sender recorded on events the server generates.
const SystemAccount = "system"

// Event is one message fanned out to the subscribers of a conversation.
// Events are shared between subscribers and must not be modified after
// they are published.
type Event struct {
	ID           uint64      `json:"id"`
	Account      string      `json:"account"`
	Username     string      `json:"username"`
	Content      string      `json:"content"`
	SendAt       time.Time   `json:"send_at"`
	Conversation Kind        `json:"conversation"`
	Type         MessageType `json:"message_type"`
}

// NewTextEvent builds the event for a persisted user message.
func NewTextEvent(key Key, id uint64, account, username, content string, at time.Time) *Event {
	return &Event{
		ID:           id,
		Account:      account,
		Username:     username,
		Content:      content,
		SendAt:       at,
		Conversation: key.Kind,
		Type:         TypeText,
	}
}

// NewOnlineListEvent builds a presence snapshot event. The content is the
// JSON encoding of names.
func NewOnlineListEvent(key Key, names []string, at time.Time) (*Event, error) {
	if names == nil {
		names = []string{}
	}
	content, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encoding online list: %w", err)
	}
	return &Event{
		Account:      SystemAccount,
		Username:     SystemAccount,
		Content:      string(content),
		SendAt:       at,
		Conversation: key.Kind,
		Type:         TypeOnlineList,
	}, nil
}

// OnlineNames decodes the display names of an online_list event.
func (e *Event) OnlineNames() ([]string, error) {
	if e.Type != TypeOnlineList {
		return nil, fmt.Errorf("event type %q is not %q", e.Type, TypeOnlineList)
	}
	var names []string
	if err := json.Unmarshal([]byte(e.Content), &names); err != nil {
		return nil, fmt.Errorf("decoding online list: %w", err)
	}
	return names, nil
}

// Encode returns the wire form of the event.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
