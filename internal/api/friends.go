// ABOUTME: Friendship handlers
// ABOUTME: Friendships are mutual and gate private sessions

package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/xiaozhu6-2-2/Chat/internal/chat"
	"github.com/xiaozhu6-2-2/Chat/internal/store"
)

type addFriendRequest struct {
	Account string `json:"account" validate:"required"`
}

type friendInfo struct {
	Account  string `json:"account"`
	Username string `json:"username"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleAddFriend(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req addFriendRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Account == id.Account {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot befriend yourself")
	}

	if err := s.store.AddFriend(c.Request().Context(), id.Account, req.Account); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleRemoveFriend(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	peer := c.Param("account")
	removed, err := s.store.RemoveFriend(ctx, id.Account, peer)
	if err != nil {
		return httpError(err)
	}
	if removed {
		s.closePrivateSessions(ctx, id.Account, peer)
	}
	return c.JSON(http.StatusOK, successResponse{Success: removed})
}

// closePrivateSessions disconnects live sockets on the private session
// between a and b, since it may no longer be used once they are not friends.
func (s *Server) closePrivateSessions(ctx context.Context, a, b string) {
	seen := make(map[chat.Key]bool)
	for _, sess := range s.handler.Sessions() {
		key := sess.Key
		if key.Kind != chat.KindSession || seen[key] {
			continue
		}
		seen[key] = true

		ps, err := s.store.GetPrivateSession(ctx, key.ID)
		if err != nil || !ps.Includes(a) || !ps.Includes(b) {
			continue
		}
		if _, err := s.handler.Disconnect(ctx, key); err != nil {
			s.logger.Warn("failed to disconnect private session", "session_id", key.ID, "error", err)
		}
	}
}

func (s *Server) handleListFriends(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	friends, err := s.store.ListFriends(c.Request().Context(), id.Account)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, lo.Map(friends, func(u *store.User, _ int) friendInfo {
		return friendInfo{Account: u.Account, Username: u.Username}
	}))
}
