// ABOUTME: Message history paging shared by room and private session endpoints
// ABOUTME: Returns stored messages in the same event shape used on the socket

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/xiaozhu6-2-2/Chat/internal/chat"
	"github.com/xiaozhu6-2-2/Chat/internal/store"
)

const timeFormat = time.RFC3339

type historyResponse struct {
	Conversation string        `json:"conversation"`
	Messages     []*chat.Event `json:"messages"`
	// NextBefore is passed as ?before= to fetch the following page. Zero
	// means there is nothing older.
	NextBefore uint64 `json:"next_before"`
}

func queryUint(c echo.Context, name string, bits int) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}

// writeHistory serves one page of key's history, newest first.
func (s *Server) writeHistory(c echo.Context, key chat.Key) error {
	limit, err := queryUint(c, "limit", 16)
	if err != nil {
		return err
	}
	before, err := queryUint(c, "before", 64)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	records, err := s.store.ListMessages(ctx, store.MessageQuery{
		Kind:           key.StoreKind(),
		ConversationID: key.ID,
		BeforeID:       before,
		Limit:          int(limit),
	})
	if err != nil {
		return httpError(err)
	}

	events := lo.Map(records, func(r *store.MessageRecord, _ int) *chat.Event {
		return chat.NewTextEvent(key, r.ID, r.Sender, s.pipeline.DisplayName(ctx, r.Sender), r.Content, r.SentAt)
	})

	pageSize := int(limit)
	if pageSize <= 0 {
		pageSize = store.DefaultHistoryLimit
	}
	pageSize = min(pageSize, store.MaxHistoryLimit)

	resp := historyResponse{Conversation: key.String(), Messages: events}
	if n := len(records); n > 0 && n == pageSize {
		resp.NextBefore = records[n-1].ID
	}
	return c.JSON(http.StatusOK, resp)
}
