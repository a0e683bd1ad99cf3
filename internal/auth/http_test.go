// ABOUTME: Tests for echo authentication middleware
// ABOUTME: Covers header and query token extraction and rejection paths

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveWithMiddleware(t *testing.T, opts MiddlewareOptions, req *http.Request) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()

	e := echo.New()
	var got *Identity
	e.GET("/protected", func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		if ok {
			got = &id
		}
		if _, ok := FromContext(c.Request().Context()); !ok {
			t.Error("identity missing from request context")
		}
		return c.String(http.StatusOK, "ok")
	}, Middleware(newTestVerifier(t), opts))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, got
}

func TestMiddleware_BearerHeader(t *testing.T) {
	token, err := newTestVerifier(t).Generate("alice", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, id := serveWithMiddleware(t, MiddlewareOptions{}, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, id)
	assert.Equal(t, "alice", id.Account)
}

func TestMiddleware_QueryToken(t *testing.T) {
	token, err := newTestVerifier(t).Generate("bob", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)

	rec, id := serveWithMiddleware(t, MiddlewareOptions{AllowQueryToken: true}, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, id)
	assert.Equal(t, "bob", id.Account)

	rec, id = serveWithMiddleware(t, MiddlewareOptions{}, httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "query token must be ignored unless allowed")
	assert.Nil(t, id)
}

func TestMiddleware_Rejects(t *testing.T) {
	expired, err := newTestVerifier(t).Generate("alice", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage", header: "Bearer nope"},
		{name: "expired", header: "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec, id := serveWithMiddleware(t, MiddlewareOptions{AllowQueryToken: true}, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, id)
		})
	}
}
