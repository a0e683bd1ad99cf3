// ABOUTME: Per-room presence tracking keyed by account
// ABOUTME: Counts open connections so a second tab does not flap presence

package chat

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Presence records which accounts have at least one live connection in each
// room. An account is online while its connection count is positive.
// A single mutex guards the whole map; no method performs I/O under it.
type Presence struct {
	mu    sync.Mutex
	rooms map[uint32]map[string]int
}

// NewPresence creates an empty presence store.
func NewPresence() *Presence {
	return &Presence{rooms: make(map[uint32]map[string]int)}
}

// SetOnline registers one more connection of account in room.
func (p *Presence) SetOnline(room uint32, account string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, ok := p.rooms[room]
	if !ok {
		members = make(map[string]int)
		p.rooms[room] = members
	}
	members[account]++
}

// SetOffline releases one connection of account in room. The account drops
// out of the snapshot when its last connection is released.
func (p *Presence) SetOffline(room uint32, account string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, ok := p.rooms[room]
	if !ok {
		return
	}
	if members[account] <= 1 {
		delete(members, account)
	} else {
		members[account]--
	}
	if len(members) == 0 {
		delete(p.rooms, room)
	}
}

// Remove drops account from room regardless of its connection count. It
// reports whether the account was present. Used when a member leaves the room.
func (p *Presence) Remove(room uint32, account string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, ok := p.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[account]; !ok {
		return false
	}
	delete(members, account)
	if len(members) == 0 {
		delete(p.rooms, room)
	}
	return true
}

// Snapshot returns the online accounts of room, sorted. The slice is a copy.
func (p *Presence) Snapshot(room uint32) []string {
	p.mu.Lock()
	accounts := lo.Keys(p.rooms[room])
	p.mu.Unlock()

	sort.Strings(accounts)
	return accounts
}

// IsOnline reports whether account has a live connection in room.
func (p *Presence) IsOnline(room uint32, account string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rooms[room][account] > 0
}
