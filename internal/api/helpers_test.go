// ABOUTME: Shared fixtures for API tests
// ABOUTME: Builds a full server over MockStore and offers JSON request helpers

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiaozhu6-2-2/Chat/internal/auth"
	"github.com/xiaozhu6-2-2/Chat/internal/chat"
	"github.com/xiaozhu6-2-2/Chat/internal/dedupe"
	"github.com/xiaozhu6-2-2/Chat/internal/store"
	"github.com/xiaozhu6-2-2/Chat/internal/ws"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv      *httptest.Server
	store    *store.MockStore
	registry *chat.Registry
	presence *chat.Presence
	handler  *chat.Handler
	tokens   *auth.JWTVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMockStore()
	reg := chat.NewRegistry(0, nil)
	pres := chat.NewPresence()
	seen := dedupe.New(time.Minute, 1000)
	pipe := chat.NewPipeline(st, reg, pres, chat.PipelineConfig{Dedupe: seen}, nil)
	resolver := chat.NewSessionResolver(st, nil)
	h := chat.NewHandler(reg, pres, pipe, nil)

	tokens, err := auth.NewJWTVerifier([]byte(testSecret))
	require.NoError(t, err)

	server, err := New(Config{
		Store:    st,
		Registry: reg,
		Presence: pres,
		Pipeline: pipe,
		Resolver: resolver,
		Handler:  h,
		Tokens:   tokens,
		Socket: ws.Options{
			PingInterval: time.Second,
			ReadTimeout:  5 * time.Second,
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
		srv.Close()
		reg.Close()
		seen.Close()
	})

	return &testEnv{
		srv:      srv,
		store:    st,
		registry: reg,
		presence: pres,
		handler:  h,
		tokens:   tokens,
	}
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// decode sends a request, requires want as the status and decodes the body into out.
func (e *testEnv) decode(t *testing.T, method, path, token string, body any, want int, out any) {
	t.Helper()
	status, data := e.do(t, method, path, token, body)
	require.Equal(t, want, status, "body: %s", data)
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out))
	}
}

// signup registers an account through the API and returns a login token.
func (e *testEnv) signup(t *testing.T, account, username string) string {
	t.Helper()
	password := account + "-password"

	e.decode(t, http.MethodPost, "/register", "", map[string]string{
		"account":  account,
		"password": password,
		"username": username,
	}, http.StatusOK, nil)

	var resp loginResponse
	e.decode(t, http.MethodPost, "/login", "", map[string]string{
		"account":  account,
		"password": password,
	}, http.StatusOK, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// seedUser creates an account directly in the store, skipping password hashing.
func (e *testEnv) seedUser(t *testing.T, account, username string) string {
	t.Helper()
	require.NoError(t, e.store.CreateUser(context.Background(), &store.User{Account: account, Username: username}))
	token, err := e.tokens.Generate(account, time.Hour)
	require.NoError(t, err)
	return token
}

func itoa[T uint32 | uint64](v T) string {
	return strconv.FormatUint(uint64(v), 10)
}
