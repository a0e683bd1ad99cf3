// ABOUTME: Message pipeline turning inbound payloads into persisted, broadcast events
// ABOUTME: Records first and publishes second; storage failures are never published

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/xiaozhu6-2-2/Chat/internal/dedupe"
	"github.com/xiaozhu6-2-2/Chat/internal/store"
)

// DefaultMaxContentLength bounds message content in characters.
const DefaultMaxContentLength = 4096

// Store is the persistence the chat core depends on.
type Store interface {
	AppendMessage(ctx context.Context, msg *store.MessageRecord) (uint64, error)
	DisplayName(ctx context.Context, account string) (string, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	GetOrCreatePrivateSession(ctx context.Context, a, b string) (*store.PrivateSession, error)
	GetPrivateSession(ctx context.Context, id uint64) (*store.PrivateSession, error)
}

// PipelineConfig tunes inbound message handling.
type PipelineConfig struct {
	// MaxContentLength rejects longer messages. Zero uses DefaultMaxContentLength.
	MaxContentLength int
	// Dedupe, when set, drops messages whose nonce was already seen.
	Dedupe *dedupe.Cache
}

// Pipeline persists inbound messages and publishes them to the registry.
type Pipeline struct {
	store    Store
	registry *Registry
	presence *Presence
	dedupe   *dedupe.Cache
	maxLen   int
	logger   *slog.Logger
	now      func() time.Time

	namesMu sync.RWMutex
	names   map[string]string
}

// NewPipeline creates a pipeline. Pass nil logger for default.
func NewPipeline(s Store, registry *Registry, presence *Presence, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	maxLen := cfg.MaxContentLength
	if maxLen <= 0 {
		maxLen = DefaultMaxContentLength
	}
	return &Pipeline{
		store:    s,
		registry: registry,
		presence: presence,
		dedupe:   cfg.Dedupe,
		maxLen:   maxLen,
		logger:   logger.With("component", "pipeline"),
		now:      time.Now,
		names:    make(map[string]string),
	}
}

// inboundMessage is the JSON form a client may send instead of plain text.
type inboundMessage struct {
	Content string `json:"content"`
	Nonce   string `json:"nonce,omitempty"`
}

// decodeInbound accepts either a JSON object with a content field or the
// raw text of the message.
func decodeInbound(raw []byte) inboundMessage {
	if len(raw) > 0 && raw[0] == '{' {
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err == nil && msg.Content != "" {
			return msg
		}
	}
	return inboundMessage{Content: string(raw)}
}

// Ingest persists one inbound payload from sender and publishes it to every
// subscriber of key, including the sender's own connections. Payloads that
// are empty, too long or replayed are dropped with a sentinel error.
// A storage failure returns ErrStorageUnavailable and publishes nothing.
func (p *Pipeline) Ingest(ctx context.Context, key Key, sender, displayName string, raw []byte) error {
	msg := decodeInbound(raw)

	if isBlank(msg.Content) {
		return ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(msg.Content); n > p.maxLen {
		return fmt.Errorf("%w: %d > %d characters", ErrMessageTooLong, n, p.maxLen)
	}
	var nonceKey string
	if msg.Nonce != "" && p.dedupe != nil {
		nonceKey = dedupe.Key(sender, key.String(), msg.Nonce)
		if p.dedupe.CheckAndMark(nonceKey) {
			return fmt.Errorf("%w: nonce %q", ErrDuplicate, msg.Nonce)
		}
	}

	now := p.now()
	rec := &store.MessageRecord{
		Kind:           key.StoreKind(),
		ConversationID: key.ID,
		Sender:         sender,
		Content:        msg.Content,
		SentAt:         now,
	}

	id, err := p.store.AppendMessage(ctx, rec)
	if err != nil {
		// A nonce whose message was never stored must stay usable for a retry.
		if nonceKey != "" {
			p.dedupe.Forget(nonceKey)
		}
		p.logger.Error("failed to persist message, dropping",
			"conversation", key.String(),
			"sender", sender,
			"error", err)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	ev := NewTextEvent(key, id, sender, displayName, msg.Content, now)
	delivered := p.registry.Publish(key, ev)

	p.logger.Debug("message published",
		"conversation", key.String(),
		"message_id", id,
		"sender", sender,
		"delivered", delivered)
	return nil
}

// PublishPresence sends the current online list of room to its subscribers.
func (p *Pipeline) PublishPresence(ctx context.Context, room uint32) error {
	accounts := p.presence.Snapshot(room)
	names := lo.Map(accounts, func(account string, _ int) string {
		return p.DisplayName(ctx, account)
	})

	key := RoomKey(room)
	ev, err := NewOnlineListEvent(key, names, p.now())
	if err != nil {
		return err
	}

	delivered := p.registry.Publish(key, ev)
	p.logger.Debug("presence published",
		"conversation", key.String(),
		"online", len(names),
		"delivered", delivered)
	return nil
}

// DisplayName resolves an account's display name, falling back to the
// account itself when it is unknown or the lookup fails. Results are cached.
func (p *Pipeline) DisplayName(ctx context.Context, account string) string {
	p.namesMu.RLock()
	name, ok := p.names[account]
	p.namesMu.RUnlock()
	if ok {
		return name
	}

	name, err := p.store.DisplayName(ctx, account)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		name = account
	default:
		p.logger.Warn("display name lookup failed", "account", account, "error", err)
		return account
	}

	p.namesMu.Lock()
	p.names[account] = name
	p.namesMu.Unlock()
	return name
}

func isBlank(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
