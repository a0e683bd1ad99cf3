// ABOUTME: Maps chat and store errors onto HTTP status codes
// ABOUTME: Every handler funnels failures through httpError

package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaozhu6-2-2/Chat/internal/chat"
	"github.com/xiaozhu6-2-2/Chat/internal/store"
)

// httpError converts err into an *echo.HTTPError. Errors that already carry
// a status pass through unchanged.
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, chat.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, chat.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, chat.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, "already exists")
	case errors.Is(err, chat.ErrStorageUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
