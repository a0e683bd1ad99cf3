// ABOUTME: HTTP client for the chat-gateway REST endpoints
// ABOUTME: Wraps JSON requests with bearer auth and decodes API errors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// apiClient talks to one gateway.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// apiError is a non-2xx response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.Status)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &apiError{Status: resp.StatusCode, Message: e.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *apiClient) register(ctx context.Context, account, password, username string) error {
	return c.do(ctx, http.MethodPost, "/register", map[string]string{
		"account":  account,
		"password": password,
		"username": username,
	}, nil)
}

type loginResult struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (c *apiClient) login(ctx context.Context, account, password string) (*loginResult, error) {
	var res loginResult
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"account":  account,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type roomResult struct {
	Success    bool   `json:"success"`
	ChatroomID uint32 `json:"chatroom_id"`
	Message    string `json:"message"`
}

func (c *apiClient) createRoom(ctx context.Context, name string) (*roomResult, error) {
	var res roomResult
	if err := c.do(ctx, http.MethodPost, "/chatrooms", map[string]string{"name": name}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) roomAction(ctx context.Context, action string, id uint32) (*roomResult, error) {
	var res roomResult
	if err := c.do(ctx, http.MethodPost, "/chatrooms/"+action, map[string]uint32{"chatroom_id": id}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type roomInfo struct {
	ID        uint32 `json:"chatroom_id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

func (c *apiClient) listRooms(ctx context.Context) ([]roomInfo, error) {
	var rooms []roomInfo
	if err := c.do(ctx, http.MethodGet, "/chatrooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *apiClient) addFriend(ctx context.Context, account string) error {
	return c.do(ctx, http.MethodPost, "/friends", map[string]string{"account": account}, nil)
}

func (c *apiClient) openSession(ctx context.Context, peer string) (uint64, error) {
	var res struct {
		SessionID uint64 `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{"peer": peer}, &res); err != nil {
		return 0, err
	}
	return res.SessionID, nil
}

// socketURL returns the WebSocket URL for a room or session path with the
// token attached as a query parameter.
func (c *apiClient) socketURL(kind string, id uint64) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing gateway URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + kind + "/" + strconv.FormatUint(id, 10)
	u.RawQuery = url.Values{"token": {c.token}}.Encode()
	return u.String(), nil
}
