// ABOUTME: Private session handlers
// ABOUTME: Resolves a friend pair to its session and serves the session's history

package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type openSessionRequest struct {
	Peer string `json:"peer" validate:"required"`
}

type openSessionResponse struct {
	SessionID uint64 `json:"session_id"`
	Peer      string `json:"peer"`
}

func parseSessionID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	return id, nil
}

func (s *Server) handleOpenSession(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req openSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	key, err := s.resolver.Resolve(c.Request().Context(), id.Account, req.Peer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, openSessionResponse{SessionID: key.ID, Peer: req.Peer})
}

func (s *Server) handleSessionMessages(c echo.Context) error {
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
	return s.writeHistory(c, key)
}
