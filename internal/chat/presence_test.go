// ABOUTME: Tests for per-room presence counting
// ABOUTME: Covers multi-connection accounts, snapshots and concurrent updates

package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresence_RefCounted(t *testing.T) {
	p := NewPresence()

	p.SetOnline(7, "alice")
	p.SetOnline(7, "alice")
	p.SetOffline(7, "alice")
	assert.Equal(t, []string{"alice"}, p.Snapshot(7), "one tab still open")

	p.SetOffline(7, "alice")
	assert.Empty(t, p.Snapshot(7))
	assert.False(t, p.IsOnline(7, "alice"))
}

func TestPresence_SnapshotSortedCopy(t *testing.T) {
	p := NewPresence()
	for _, a := range []string{"carol", "alice", "bob"} {
		p.SetOnline(7, a)
	}

	snap := p.Snapshot(7)
	assert.Equal(t, []string{"alice", "bob", "carol"}, snap)

	snap[0] = "mallory"
	assert.Equal(t, []string{"alice", "bob", "carol"}, p.Snapshot(7))
}

func TestPresence_RoomsAreIndependent(t *testing.T) {
	p := NewPresence()
	p.SetOnline(1, "alice")
	p.SetOnline(2, "bob")

	assert.Equal(t, []string{"alice"}, p.Snapshot(1))
	assert.Equal(t, []string{"bob"}, p.Snapshot(2))
	assert.NotNil(t, p.Snapshot(3))
	assert.Empty(t, p.Snapshot(3))
}

func TestPresence_OfflineWithoutOnlineIsNoop(t *testing.T) {
	p := NewPresence()
	p.SetOffline(7, "ghost")
	p.SetOnline(7, "alice")
	p.SetOffline(7, "ghost")
	assert.Equal(t, []string{"alice"}, p.Snapshot(7))
}

func TestPresence_Remove(t *testing.T) {
	p := NewPresence()
	p.SetOnline(7, "alice")
	p.SetOnline(7, "alice")

	assert.True(t, p.Remove(7, "alice"))
	assert.Empty(t, p.Snapshot(7))
	assert.False(t, p.Remove(7, "alice"))
}

func TestPresence_Concurrent(t *testing.T) {
	p := NewPresence()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account := fmt.Sprintf("user-%02d", i)
			for range 10 {
				p.SetOnline(7, account)
				_ = p.Snapshot(7)
			}
			for range 9 {
				p.SetOffline(7, account)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, p.Snapshot(7), 20)
}
