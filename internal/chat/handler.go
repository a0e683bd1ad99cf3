// ABOUTME: Connection handler driving one client connection through its lifecycle
// ABOUTME: Runs paired inbound and outbound loops; either ending tears down both

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/xiaozhu6-2-2/Chat/internal/auth"
)

// Conn is a message-oriented, bidirectional client transport.
// Read and Write may be called concurrently with each other; Close
// unblocks both.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
	RemoteAddr() string
}

// ConnState is the lifecycle stage of a connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateActive
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("ConnState(%d)", int32(s))
}

// Session is a live connection bound to one conversation.
type Session struct {
	ID          string
	Identity    auth.Identity
	Key         Key
	DisplayName string
	ConnectedAt time.Time

	conn   Conn
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

// State returns the current lifecycle stage.
func (s *Session) State() ConnState {
	return ConnState(s.state.Load())
}

func (s *Session) setState(st ConnState) {
	s.state.Store(int32(st))
}

// Handler serves client connections against the registry and pipeline.
type Handler struct {
	registry *Registry
	presence *Presence
	pipeline *Pipeline
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closing  bool
	wg       sync.WaitGroup
}

// NewHandler creates a handler. Pass nil logger for default.
func NewHandler(registry *Registry, presence *Presence, pipeline *Pipeline, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		presence: presence,
		pipeline: pipeline,
		logger:   logger.With("component", "handler"),
		sessions: make(map[string]*Session),
	}
}

// Serve runs conn until the client disconnects, a transport error occurs,
// ctx is cancelled or the handler is shut down. The identity must already
// be authorized for key. Serve always closes conn.
func (h *Handler) Serve(ctx context.Context, conn Conn, id auth.Identity, key Key) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := &Session{
		ID:          uuid.New().String(),
		Identity:    id,
		Key:         key,
		DisplayName: h.pipeline.DisplayName(ctx, id.Account),
		ConnectedAt: time.Now(),
		conn:        conn,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	sess.setState(StateConnecting)

	if !h.track(sess) {
		conn.Close()
		return ErrClosed
	}
	defer h.untrack(sess)
	defer close(sess.done)

	logger := h.logger.With(
		"conn_id", sess.ID,
		"account", id.Account,
		"conversation", key.String(),
		"remote", conn.RemoteAddr())

	sub, err := h.registry.Subscribe(key)
	if err != nil {
		sess.setState(StateClosed)
		conn.Close()
		return fmt.Errorf("subscribing to %s: %w", key, err)
	}

	if key.IsRoom() {
		h.presence.SetOnline(key.RoomID(), id.Account)
	}
	sess.setState(StateActive)
	logger.Info("connection active", "display_name", sess.DisplayName)

	if key.IsRoom() {
		if err := h.pipeline.PublishPresence(ctx, key.RoomID()); err != nil {
			logger.Warn("failed to publish presence", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.outbound(gctx, sess, sub) })
	g.Go(func() error { return h.inbound(gctx, sess, logger) })
	g.Go(func() error {
		// Closing the transport unblocks whichever loop is still running.
		<-gctx.Done()
		sess.setState(StateClosing)
		conn.Close()
		return nil
	})
	cause := g.Wait()

	sub.Close()
	if key.IsRoom() {
		h.presence.SetOffline(key.RoomID(), id.Account)
		// The handler's own context is done; use a fresh one so the
		// remaining members still learn about the departure.
		pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := h.pipeline.PublishPresence(pctx, key.RoomID()); err != nil {
			logger.Warn("failed to publish presence", "error", err)
		}
		pcancel()
	}
	sess.setState(StateClosed)

	logger.Info("connection closed",
		"cause", cause,
		"dropped", sub.Dropped(),
		"duration", time.Since(sess.ConnectedAt).Round(time.Millisecond))
	return nil
}

// outbound writes every subscribed event to the transport. It always
// returns a non-nil error so the errgroup cancels the inbound loop.
func (h *Handler) outbound(ctx context.Context, sess *Session, sub *Subscription) error {
	for {
		ev, err := sub.Receive(ctx)
		if err != nil {
			return err
		}

		data, err := ev.Encode()
		if err != nil {
			h.logger.Error("failed to encode event", "event_id", ev.ID, "error", err)
			continue
		}

		if err := sess.conn.Write(ctx, data); err != nil {
			return fmt.Errorf("%w: write: %v", ErrTransport, err)
		}
	}
}

// inbound feeds every received payload through the pipeline in order. It
// always returns a non-nil error so the errgroup cancels the outbound loop.
func (h *Handler) inbound(ctx context.Context, sess *Session, logger *slog.Logger) error {
	for {
		raw, err := sess.conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("%w: read: %v", ErrTransport, err)
		}

		err = h.pipeline.Ingest(ctx, sess.Key, sess.Identity.Account, sess.DisplayName, raw)
		switch {
		case err == nil:
		case errors.Is(err, ErrStorageUnavailable):
			// Already logged by the pipeline; the connection stays open.
		case errors.Is(err, ErrEmptyMessage):
		default:
			logger.Warn("inbound message rejected", "error", err)
		}
	}
}

func (h *Handler) track(sess *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.sessions[sess.ID] = sess
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(sess *Session) {
	h.mu.Lock()
	delete(h.sessions, sess.ID)
	h.mu.Unlock()
	h.wg.Done()
}

// Sessions returns a snapshot of the live sessions.
func (h *Handler) Sessions() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		result = append(result, s)
	}
	return result
}

// Disconnect closes the live sessions on key held by any of accounts, or
// every session on key when no account is given. It waits until those
// sessions have fully closed, including their presence update, and returns
// how many there were.
func (h *Handler) Disconnect(ctx context.Context, key Key, accounts ...string) (int, error) {
	h.mu.Lock()
	var matched []*Session
	for _, s := range h.sessions {
		if s.Key != key {
			continue
		}
		if len(accounts) > 0 && !lo.Contains(accounts, s.Identity.Account) {
			continue
		}
		s.cancel()
		matched = append(matched, s)
	}
	h.mu.Unlock()

	for _, s := range matched {
		select {
		case <-s.done:
		case <-ctx.Done():
			return len(matched), fmt.Errorf("waiting for %s to close: %w", key, ctx.Err())
		}
	}
	if len(matched) > 0 {
		h.logger.Info("disconnected sessions", "conversation", key.String(), "count", len(matched))
	}
	return len(matched), nil
}

// Shutdown refuses new connections, cancels every live one and waits for
// them to finish or for ctx to expire.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	for _, s := range h.sessions {
		s.cancel()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connections: %w", ctx.Err())
	}
}
