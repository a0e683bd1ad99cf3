// ABOUTME: Per-conversation fan-out channel with bounded subscriber backlogs
// ABOUTME: Publishing never blocks; a full backlog drops its oldest event

package chat

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultSubscriberBacklog is the per-subscriber event buffer.
const DefaultSubscriberBacklog = 100

// Channel fans events out to every subscriber of one conversation.
// Publishes are serialized so all subscribers see the same order.
type Channel struct {
	key     Key
	backlog int
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	subs       map[string]*Subscription
	lastActive time.Time
	closed     bool
	published  uint64
}

func newChannel(key Key, backlog int, logger *slog.Logger, now func() time.Time) *Channel {
	return &Channel{
		key:        key,
		backlog:    backlog,
		logger:     logger,
		now:        now,
		subs:       make(map[string]*Subscription),
		lastActive: now(),
	}
}

// Key returns the conversation this channel serves.
func (c *Channel) Key() Key {
	return c.key
}

// Publish delivers ev to every current subscriber and returns how many
// subscribers it was queued for.
func (c *Channel) Publish(ev *Event) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}

	c.published++
	c.lastActive = c.now()

	for _, sub := range c.subs {
		if sub.offer(ev) {
			c.logger.Debug("dropped oldest event for slow subscriber",
				"conversation", c.key.String(),
				"sub_id", sub.id)
		}
	}
	return len(c.subs)
}

// SubscriberCount returns the number of attached subscriptions.
func (c *Channel) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// subscribe attaches a new subscription. The registry calls it while
// holding its own lock so a sweep cannot orphan the subscription.
func (c *Channel) subscribe() *Subscription {
	sub := &Subscription{
		id:      uuid.New().String(),
		key:     c.key,
		ch:      make(chan *Event, c.backlog),
		channel: c,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}

	c.subs[sub.id] = sub
	c.lastActive = c.now()

	c.logger.Debug("subscriber added",
		"conversation", c.key.String(),
		"sub_id", sub.id,
		"subscribers", len(c.subs))
	return sub
}

func (c *Channel) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[sub.id]; !ok {
		return
	}
	delete(c.subs, sub.id)
	sub.closeLocked()
	c.lastActive = c.now()

	c.logger.Debug("subscriber removed",
		"conversation", c.key.String(),
		"sub_id", sub.id,
		"subscribers", len(c.subs))
}

// idle reports whether the channel has no subscribers and has seen no
// activity since the cutoff.
func (c *Channel) idle(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs) == 0 && !c.lastActive.After(cutoff)
}

// close detaches and closes every subscription.
func (c *Channel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, sub := range c.subs {
		sub.closeLocked()
		delete(c.subs, id)
	}
}

// Subscription is one consumer's view of a Channel.
type Subscription struct {
	id      string
	key     Key
	ch      chan *Event
	channel *Channel
	dropped atomic.Uint64

	// closed is guarded by channel.mu.
	closed bool
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Key returns the conversation the subscription is attached to.
func (s *Subscription) Key() Key {
	return s.key
}

// Dropped returns how many events were discarded because the backlog was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Receive blocks until the next event is available, ctx is done, or the
// subscription is closed. Events arrive in publish order.
func (s *Subscription) Receive(ctx context.Context) (*Event, error) {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return nil, ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close detaches the subscription from its channel. Buffered events that
// were not received are discarded. Safe to call more than once.
func (s *Subscription) Close() {
	s.channel.unsubscribe(s)
}

// offer queues ev, evicting the oldest buffered event if the backlog is
// full. It reports whether an event was evicted. Must be called with
// channel.mu held, which makes the publisher the only writer.
func (s *Subscription) offer(ev *Event) bool {
	evicted := false
	for {
		select {
		case s.ch <- ev:
			return evicted
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
			evicted = true
		default:
			// The reader drained the buffer between the two selects.
		}
	}
}

// closeLocked must be called with channel.mu held.
func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
