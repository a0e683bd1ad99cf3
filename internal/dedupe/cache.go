// ABOUTME: Thread-safe TTL cache for rejecting replayed client message nonces.
// ABOUTME: Bounded in size; the oldest entry is evicted first when full.

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// maxCleanupInterval bounds how often expired entries are swept.
const maxCleanupInterval = time.Minute

type entry struct {
	key    string
	seenAt time.Time
}

// Cache remembers keys for a fixed TTL. Entries are kept in a list ordered
// by last mark so eviction of the oldest is O(1).
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a cache that forgets keys after ttl and never holds more
// than maxSize keys. A background goroutine sweeps expired entries until
// Close is called.
func New(ttl time.Duration, maxSize int) *Cache {
	c := newCache(ttl, maxSize, time.Now)
	go c.sweepLoop(cleanupInterval(ttl))
	return c
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > maxCleanupInterval {
		return maxCleanupInterval
	}
	return ttl
}

// Key joins parts into a single cache key. Use it to scope nonces, e.g.
// Key(account, conversation, nonce), so that two senders may reuse a nonce.
func Key(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// Seen reports whether key was marked within the TTL.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.seen[key]
	return ok && c.live(el.Value.(*entry))
}

// CheckAndMark atomically checks key and marks it. It returns true when the
// key was already live (a duplicate) and false when it is new.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.seen[key]; ok && c.live(el.Value.(*entry)) {
		return true
	}
	c.markLocked(key)
	return false
}

// Mark records key as seen now.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// Forget removes key so the next CheckAndMark treats it as new.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.seen[key]; ok {
		c.order.Remove(el)
		delete(c.seen, key)
	}
}

// Len returns the number of tracked keys, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) live(e *entry) bool {
	return c.now().Sub(e.seenAt) < c.ttl
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(key string) {
	now := c.now()

	if el, ok := c.seen[key]; ok {
		el.Value.(*entry).seenAt = now
		c.order.MoveToBack(el)
		return
	}

	for len(c.seen) >= c.maxSize {
		front := c.order.Front()
		if front == nil {
			break
		}
		c.order.Remove(front)
		delete(c.seen, front.Value.(*entry).key)
	}

	c.seen[key] = c.order.PushBack(&entry{key: key, seenAt: now})
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired entries. Since marks move entries to the back, the
// expired ones are always a prefix of the list.
func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		e := el.Value.(*entry)
		if c.live(e) {
			break
		}
		next := el.Next()
		c.order.Remove(el)
		delete(c.seen, e.key)
		removed++
		el = next
	}
	return removed
}

// Close stops the background sweep. It is safe to call multiple times.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
