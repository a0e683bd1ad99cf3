// ABOUTME: Tests for the websocket adapter
// ABOUTME: Uses httptest servers and gorilla dialers to exercise real frames

package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// echoServer upgrades every request and writes back each frame it reads.
func echoServer(t *testing.T, opts Options, origins []string) *httptest.Server {
	t.Helper()
	up := NewUpgrader(origins)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(up, w, r, opts)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if err := conn.Write(r.Context(), data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConn_Echo(t *testing.T) {
	srv := echoServer(t, Options{}, nil)

	client, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello")))
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, "hello", string(data))
}

func TestConn_ReadLimit(t *testing.T) {
	srv := echoServer(t, Options{MaxMessageSize: 8}, nil)

	client, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64))))
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = client.ReadMessage()
	require.Error(t, err, "oversized frame should close the connection")
}

func TestConn_PingKeepsAlive(t *testing.T) {
	opts := Options{PingInterval: 20 * time.Millisecond, ReadTimeout: 200 * time.Millisecond}
	srv := echoServer(t, opts, nil)

	client, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer client.Close()

	pings := make(chan struct{}, 16)
	client.SetPingHandler(func(data string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return client.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	// Control frames are only processed while reading.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}

	// Outlive the read timeout; pongs must keep the server side open.
	time.Sleep(400 * time.Millisecond)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("still here")))
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	type result struct{ readErr, writeErr error }
	closed := make(chan result, 1)
	up := NewUpgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(up, w, r, Options{})
		if err != nil {
			return
		}
		conn.Close()
		conn.Close()
		_, readErr := conn.Read(context.Background())
		closed <- result{readErr, conn.Write(context.Background(), []byte("x"))}
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer client.Close()

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	select {
	case res := <-closed:
		assert.ErrorIs(t, res.readErr, ErrConnClosed)
		assert.ErrorIs(t, res.writeErr, ErrConnClosed)
		assert.True(t, IsNormalClose(res.readErr))
	case <-time.After(2 * time.Second):
		t.Fatal("server handler did not finish")
	}
}

func TestUpgrader_Origins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty list allows all", nil, "https://evil.example", true},
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"listed", []string{"https://chat.example.com/"}, "https://chat.example.com", true},
		{"case insensitive", []string{"https://Chat.Example.com"}, "https://chat.example.com", true},
		{"not listed", []string{"https://chat.example.com"}, "https://evil.example", false},
		{"no origin header", []string{"https://chat.example.com"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := NewUpgrader(tt.allowed)
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, up.CheckOrigin(r))
		})
	}
}

func TestUpgrade_RejectsForeignOrigin(t *testing.T) {
	srv := echoServer(t, Options{}, []string{"https://chat.example.com"})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
