// ABOUTME: Chatroom handlers: create, join, leave, list, online members and history
// ABOUTME: Leaving a room closes the caller's sockets on it and republishes the online list

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/xiaozhu6-2-2/Chat/internal/chat"
	"github.com/xiaozhu6-2-2/Chat/internal/store"
)

type createChatroomRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

type chatroomRequest struct {
	ChatroomID uint32 `json:"chatroom_id" validate:"required"`
}

type chatroomResponse struct {
	Success    bool   `json:"success"`
	ChatroomID uint32 `json:"chatroom_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

type chatroomInfo struct {
	ID        uint32 `json:"chatroom_id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

type onlineResponse struct {
	ChatroomID uint32   `json:"chatroom_id"`
	Online     []string `json:"online"`
}

func parseRoomID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid chatroom id")
	}
	return uint32(id), nil
}

func (s *Server) handleCreateChatroom(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req createChatroomRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	room, err := s.store.CreateChatroom(c.Request().Context(), req.Name, id.Account)
	if err != nil {
		return httpError(err)
	}

	s.logger.Info("chatroom created", "chatroom_id", room.ID, "account", id.Account)
	return c.JSON(http.StatusOK, chatroomResponse{
		Success:    true,
		ChatroomID: room.ID,
		Message:    "chatroom created",
	})
}

func (s *Server) handleListChatrooms(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	rooms, err := s.store.ListChatrooms(c.Request().Context(), id.Account)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, lo.Map(rooms, func(r *store.Chatroom, _ int) chatroomInfo {
		return chatroomInfo{
			ID:        r.ID,
			Name:      r.Name,
			CreatedBy: r.CreatedBy,
			CreatedAt: r.CreatedAt.UTC().Format(timeFormat),
		}
	}))
}

func (s *Server) handleJoinChatroom(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req chatroomRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := s.store.GetChatroom(ctx, req.ChatroomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusOK, chatroomResponse{Message: "chatroom not found"})
		}
		return httpError(err)
	}

	already, err := s.store.IsMember(ctx, req.ChatroomID, id.Account)
	if err != nil {
		return httpError(err)
	}
	if already {
		return c.JSON(http.StatusOK, chatroomResponse{
			ChatroomID: req.ChatroomID,
			Message:    "already a member",
		})
	}

	if err := s.store.JoinChatroom(ctx, req.ChatroomID, id.Account); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, chatroomResponse{
		Success:    true,
		ChatroomID: req.ChatroomID,
		Message:    "joined chatroom",
	})
}

func (s *Server) handleLeaveChatroom(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req chatroomRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	left, err := s.store.LeaveChatroom(ctx, req.ChatroomID, id.Account)
	if err != nil {
		return httpError(err)
	}
	if !left {
		return c.JSON(http.StatusOK, chatroomResponse{
			Success:    false,
			ChatroomID: req.ChatroomID,
			Message:    "not a member",
		})
	}

	// Sockets the account still holds on the room lose their admission.
	if _, err := s.handler.Disconnect(ctx, chat.RoomKey(req.ChatroomID), id.Account); err != nil {
		s.logger.Warn("failed to disconnect sockets", "chatroom_id", req.ChatroomID, "account", id.Account, "error", err)
	}
	if s.presence.Remove(req.ChatroomID, id.Account) {
		if err := s.pipeline.PublishPresence(ctx, req.ChatroomID); err != nil {
			s.logger.Warn("failed to publish presence", "chatroom_id", req.ChatroomID, "error", err)
		}
	}

	return c.JSON(http.StatusOK, chatroomResponse{
		Success:    true,
		ChatroomID: req.ChatroomID,
		Message:    "left chatroom",
	})
}

// requireMember loads the room and checks that account belongs to it.
func (s *Server) requireMember(ctx context.Context, roomID uint32, account string) error {
	if _, err := s.store.GetChatroom(ctx, roomID); err != nil {
		return httpError(err)
	}
	member, err := s.store.IsMember(ctx, roomID, account)
	if err != nil {
		return httpError(err)
	}
	if !member {
		return httpError(chat.ErrForbidden)
	}
	return nil
}

func (s *Server) handleRoomOnline(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	roomID, err := parseRoomID(c.Param("id"))
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := s.requireMember(ctx, roomID, id.Account); err != nil {
		return err
	}

	names := lo.Map(s.presence.Snapshot(roomID), func(account string, _ int) string {
		return s.pipeline.DisplayName(ctx, account)
	})
	return c.JSON(http.StatusOK, onlineResponse{ChatroomID: roomID, Online: names})
}

func (s *Server) handleRoomMessages(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	roomID, err := parseRoomID(c.Param("id"))
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := s.requireMember(ctx, roomID, id.Account); err != nil {
		return err
	}

	return s.writeHistory(c, chat.RoomKey(roomID))
}
