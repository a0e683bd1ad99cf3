// ABOUTME: WebSocket endpoints for rooms and private sessions
// ABOUTME: Entitlement is checked before the upgrade; the chat handler owns the connection afterwards

package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/xiaozhu6-2-2/Chat/internal/auth"
	"github.com/xiaozhu6-2-2/Chat/internal/chat"
	"github.com/xiaozhu6-2-2/Chat/internal/ws"
)

func (s *Server) handleRoomSocket(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	roomID, err := parseRoomID(c.Param("id"))
	if err != nil {
		return err
	}
	if err := s.requireMember(c.Request().Context(), roomID, id.Account); err != nil {
		return err
	}
	return s.serveSocket(c, id, chat.RoomKey(roomID))
}

func (s *Server) handleSessionSocket(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	sessionID, err := parseSessionID(c.Param("id"))
	if err != nil {
		return err
	}
	key, err := s.resolver.Authorize(c.Request().Context(), id.Account, sessionID)
	if err != nil {
		return httpError(err)
	}
	return s.serveSocket(c, id, key)
}

// serveSocket upgrades the request and blocks until the connection ends.
func (s *Server) serveSocket(c echo.Context, id auth.Identity, key chat.Key) error {
	conn, err := ws.Upgrade(s.upgrader, c.Response(), c.Request(), s.socket)
	if err != nil {
		// The upgrader has already written the error response.
		s.logger.Warn("websocket upgrade failed", "account", id.Account, "conversation", key.String(), "error", err)
		return nil
	}

	err = s.handler.Serve(c.Request().Context(), conn, id, key)
	if err != nil && !errors.Is(err, chat.ErrClosed) {
		s.logger.Warn("connection ended with error", "account", id.Account, "conversation", key.String(), "error", err)
	}
	return nil
}
