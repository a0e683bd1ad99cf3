// ABOUTME: Conversation registry mapping keys to fan-out channels
// ABOUTME: Channels are created lazily and evicted by an idle sweep

package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RegistryStats is a point-in-time summary for health reporting.
type RegistryStats struct {
	Channels    int `json:"channels"`
	Subscribers int `json:"subscribers"`
}

// Registry owns one Channel per active conversation. One mutex guards the
// key to channel map; each channel has its own lock for its subscribers.
// Lock order is registry then channel.
type Registry struct {
	backlog int
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	channels map[Key]*Channel
	closed   bool
}

// NewRegistry creates a registry whose subscribers buffer up to backlog
// events. A non-positive backlog uses DefaultSubscriberBacklog. Pass nil
// logger for default.
func NewRegistry(backlog int, logger *slog.Logger) *Registry {
	if backlog <= 0 {
		backlog = DefaultSubscriberBacklog
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		backlog:  backlog,
		logger:   logger.With("component", "registry"),
		now:      time.Now,
		channels: make(map[Key]*Channel),
	}
}

// GetOrCreate returns the channel for key, creating it on first use.
// Concurrent first callers observe the same instance.
func (r *Registry) GetOrCreate(key Key) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	return r.getOrCreateLocked(key), nil
}

func (r *Registry) getOrCreateLocked(key Key) *Channel {
	ch, ok := r.channels[key]
	if !ok {
		ch = newChannel(key, r.backlog, r.logger, r.now)
		r.channels[key] = ch
		r.logger.Debug("channel created", "conversation", key.String())
	}
	return ch
}

// Subscribe attaches a new subscriber to key's channel, creating the
// channel if needed. The subscriber sees every event published after
// Subscribe returns.
func (r *Registry) Subscribe(key Key) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	return r.getOrCreateLocked(key).subscribe(), nil
}

// Publish delivers ev to every subscriber currently attached to key and
// returns the number of subscribers it was queued for. With no channel
// for key the event is dropped and 0 is returned.
func (r *Registry) Publish(key Key, ev *Event) int {
	r.mu.Lock()
	ch, ok := r.channels[key]
	r.mu.Unlock()

	if !ok {
		return 0
	}
	return ch.Publish(ev)
}

// Stats reports the number of live channels and attached subscribers.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	channels := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.mu.Unlock()

	stats := RegistryStats{Channels: len(channels)}
	for _, ch := range channels {
		stats.Subscribers += ch.SubscriberCount()
	}
	return stats
}

// Sweep removes channels that have had no subscribers and no activity for
// at least idleFor. It returns the number of channels removed.
func (r *Registry) Sweep(idleFor time.Duration) int {
	cutoff := r.now().Add(-idleFor)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, ch := range r.channels {
		if ch.idle(cutoff) {
			ch.close()
			delete(r.channels, key)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("swept idle channels", "removed", removed, "remaining", len(r.channels))
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// interval disables sweeping.
func (r *Registry) RunSweeper(ctx context.Context, interval, idleFor time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idleFor)
		}
	}
}

// Close closes every channel and subscription. Subsequent Subscribe calls
// fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for key, ch := range r.channels {
		ch.close()
		delete(r.channels, key)
	}

	r.logger.Debug("registry closed")
}
