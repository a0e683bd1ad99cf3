// ABOUTME: Tests for the conversation registry and its fan-out channels
// ABOUTME: Covers ordering, drop-oldest backlogs, lazy creation, sweeping and close

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textEvent(id uint64) *Event {
	return NewTextEvent(RoomKey(7), id, "alice", "alice", fmt.Sprintf("msg-%d", id), time.Now())
}

func receive(t *testing.T, sub *Subscription) *Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	ev, err := sub.Receive(ctx)
	require.NoError(t, err)
	return ev
}

func TestRegistry_GetOrCreateReturnsSameChannel(t *testing.T) {
	r := NewRegistry(0, nil)
	defer r.Close()

	const callers = 32
	results := make([]*Channel, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch, err := r.GetOrCreate(RoomKey(1))
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			results[i] = ch
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, r.Stats().Channels)
}

func TestRegistry_RoomAndSessionKeysAreDistinct(t *testing.T) {
	r := NewRegistry(0, nil)
	defer r.Close()

	room, err := r.Subscribe(RoomKey(7))
	require.NoError(t, err)
	session, err := r.Subscribe(SessionKey(7))
	require.NoError(t, err)

	assert.Equal(t, 1, r.Publish(SessionKey(7), textEvent(1)))
	assert.Equal(t, uint64(1), receive(t, session).ID)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = room.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_PublishWithoutChannelIsDropped(t *testing.T) {
	r := NewRegistry(0, nil)
	defer r.Close()

	assert.Equal(t, 0, r.Publish(RoomKey(99), textEvent(1)))
	assert.Equal(t, 0, r.Stats().Channels, "publish must not create channels")
}

func TestRegistry_SubscriberSeesOnlyLaterEvents(t *testing.T) {
	r := NewRegistry(0, nil)
	defer r.Close()

	first, err := r.Subscribe(RoomKey(7))
	require.NoError(t, err)
	r.Publish(RoomKey(7), textEvent(1))

	second, err := r.Subscribe(RoomKey(7))
	require.NoError(t, err)
	r.Publish(RoomKey(7), textEvent(2))

	assert.Equal(t, uint64(1), receive(t, first).ID)
	assert.Equal(t, uint64(2), receive(t, first).ID)
	assert.Equal(t, uint64(2), receive(t, second).ID)
}

func TestRegistry_AllSubscribersObserveSameOrder(t *testing.T) {
	r := NewRegistry(1000, nil)
	defer r.Close()

	const subscribers, publishers, perPublisher = 4, 4, 50

	subs := make([]*Subscription, subscribers)
	for i := range subs {
		sub, err := r.Subscribe(RoomKey(7))
		require.NoError(t, err)
		subs[i] = sub
	}

	var wg sync.WaitGroup
	for p := range publishers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range perPublisher {
				r.Publish(RoomKey(7), textEvent(uint64(p*perPublisher+i+1)))
			}
		}(p)
	}
	wg.Wait()

	total := publishers * perPublisher
	orders := make([][]uint64, subscribers)
	for i, sub := range subs {
		for range total {
			orders[i] = append(orders[i], receive(t, sub).ID)
		}
	}

	for i := 1; i < subscribers; i++ {
		assert.Equal(t, orders[0], orders[i], "subscriber %d diverged", i)
	}
}

func TestRegistry_SlowSubscriberDropsOldest(t *testing.T) {
	r := NewRegistry(3, nil)
	defer r.Close()

	slow, err := r.Subscribe(RoomKey(7))
	require.NoError(t, err)

	for id := uint64(1); id <= 5; id++ {
		assert.Equal(t, 1, r.Publish(RoomKey(7), textEvent(id)), "publish must not block")
	}

	assert.Equal(t, uint64(2), slow.Dropped())
	assert.Equal(t, uint64(3), receive(t, slow).ID)
	assert.Equal(t, uint64(4), receive(t, slow).ID)
	assert.Equal(t, uint64(5), receive(t, slow).ID)
}

func TestRegistry_SlowSubscriberDoesNotAffectOthers(t *testing.T) {
	r := NewRegistry(2, nil)
	defer r.Close()

	slow, err := r.Subscribe(RoomKey(7))
	require.NoError(t, err)
	fast, err := r.Subscribe(RoomKey(7))
	require.NoError(t, err)

	for id := uint64(1); id <= 6; id++ {
		r.Publish(RoomKey(7), textEvent(id))
		assert.Equal(t, id, receive(t, fast).ID)
	}

	assert.Equal(t, uint64(0), fast.Dropped())
	assert.Equal(t, uint64(4), slow.Dropped())
}

func TestSubscription_Close(t *testing.T) {
	r := NewRegistry(0, nil)
	defer r.Close()

	sub, err := r.Subscribe(RoomKey(7))
	require.NoError(t, err)
	sub.Close()
	sub.Close()

	_, err = sub.Receive(t.Context())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, r.Publish(RoomKey(7), textEvent(1)))
	assert.Equal(t, 0, r.Stats().Subscribers)
}

func TestSubscription_ReceiveHonorsContext(t *testing.T) {
	r := NewRegistry(0, nil)
	defer r.Close()

	sub, err := r.Subscribe(RoomKey(7))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = sub.Receive(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(0, nil)
	defer r.Close()

	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	active, err := r.Subscribe(RoomKey(1))
	require.NoError(t, err)

	idle, err := r.Subscribe(RoomKey(2))
	require.NoError(t, err)
	idle.Close()

	now = now.Add(10 * time.Minute)
	assert.Equal(t, 1, r.Sweep(5*time.Minute))

	stats := r.Stats()
	assert.Equal(t, 1, stats.Channels)
	assert.Equal(t, 1, stats.Subscribers)

	// The surviving channel still delivers.
	r.Publish(RoomKey(1), textEvent(1))
	assert.Equal(t, uint64(1), receive(t, active).ID)
}

func TestRegistry_SweepKeepsRecentlyActive(t *testing.T) {
	r := NewRegistry(0, nil)
	defer r.Close()

	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	sub, err := r.Subscribe(RoomKey(3))
	require.NoError(t, err)
	now = now.Add(4 * time.Minute)
	sub.Close()

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 0, r.Sweep(5*time.Minute), "activity resets the idle clock")
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry(0, nil)

	sub, err := r.Subscribe(RoomKey(7))
	require.NoError(t, err)

	r.Close()
	r.Close()

	_, err = sub.Receive(t.Context())
	assert.ErrorIs(t, err, ErrClosed)

	_, err = r.Subscribe(RoomKey(7))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.GetOrCreate(RoomKey(7))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestKey_StringAndParse(t *testing.T) {
	assert.Equal(t, "room:7", RoomKey(7).String())
	assert.Equal(t, "session:42", SessionKey(42).String())

	k, err := ParseKey("session:42")
	require.NoError(t, err)
	assert.Equal(t, SessionKey(42), k)

	for _, bad := range []string{"", "room", "room:x", "group:1", "room:4294967296"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}
