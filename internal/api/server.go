// ABOUTME: Echo HTTP server exposing accounts, chatrooms, friends, sessions and realtime endpoints
// ABOUTME: Wires middleware, request validation and routes onto the chat core

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaozhu6-2-2/Chat/internal/auth"
	"github.com/xiaozhu6-2-2/Chat/internal/chat"
	"github.com/xiaozhu6-2-2/Chat/internal/store"
	"github.com/xiaozhu6-2-2/Chat/internal/ws"
)

// Config holds the collaborators the API serves.
type Config struct {
	Store    store.Store
	Registry *chat.Registry
	Presence *chat.Presence
	Pipeline *chat.Pipeline
	Resolver *chat.SessionResolver
	Handler  *chat.Handler
	Tokens   *auth.JWTVerifier

	// TokenTTL is the lifetime of tokens issued by /login.
	TokenTTL time.Duration
	// AllowedOrigins restricts WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string
	Socket         ws.Options

	Logger *slog.Logger
}

// Server is the HTTP face of the gateway.
type Server struct {
	store    store.Store
	registry *chat.Registry
	presence *chat.Presence
	pipeline *chat.Pipeline
	resolver *chat.SessionResolver
	handler  *chat.Handler
	tokens   *auth.JWTVerifier
	tokenTTL time.Duration
	upgrader *websocket.Upgrader
	socket   ws.Options
	logger   *slog.Logger

	echo *echo.Echo
}

// New builds the server and registers every route.
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("api: store is required")
	case cfg.Registry == nil, cfg.Presence == nil, cfg.Pipeline == nil:
		return nil, errors.New("api: registry, presence and pipeline are required")
	case cfg.Resolver == nil, cfg.Handler == nil:
		return nil, errors.New("api: resolver and handler are required")
	case cfg.Tokens == nil:
		return nil, errors.New("api: token verifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}

	s := &Server{
		store:    cfg.Store,
		registry: cfg.Registry,
		presence: cfg.Presence,
		pipeline: cfg.Pipeline,
		resolver: cfg.Resolver,
		handler:  cfg.Handler,
		tokens:   cfg.Tokens,
		tokenTTL: ttl,
		upgrader: ws.NewUpgrader(cfg.AllowedOrigins),
		socket:   cfg.Socket,
		logger:   logger.With("component", "api"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	v := validator.New()
	if err := v.RegisterValidation("account", validateAccount); err != nil {
		return nil, fmt.Errorf("api: registering validators: %w", err)
	}
	e.Validator = &requestValidator{v: v}
	e.Use(middleware.Recover())
	e.Use(s.requestLogger())

	s.registerRoutes(e)
	s.echo = e
	return s, nil
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/", s.handleRoot)
	e.GET("/health", s.handleHealth)
	e.POST("/register", s.handleRegister)
	e.POST("/login", s.handleLogin)

	requireAuth := auth.Middleware(s.tokens, auth.MiddlewareOptions{})
	e.GET("/protected", s.handleProtected, requireAuth)

	e.POST("/chatrooms", s.handleCreateChatroom, requireAuth)
	e.GET("/chatrooms", s.handleListChatrooms, requireAuth)
	e.POST("/chatrooms/join", s.handleJoinChatroom, requireAuth)
	e.POST("/chatrooms/leave", s.handleLeaveChatroom, requireAuth)
	e.GET("/chatrooms/:id/online", s.handleRoomOnline, requireAuth)
	e.GET("/chatrooms/:id/messages", s.handleRoomMessages, requireAuth)

	e.POST("/friends", s.handleAddFriend, requireAuth)
	e.GET("/friends", s.handleListFriends, requireAuth)
	e.DELETE("/friends/:account", s.handleRemoveFriend, requireAuth)

	e.POST("/sessions", s.handleOpenSession, requireAuth)
	e.GET("/sessions/:id/messages", s.handleSessionMessages, requireAuth)

	// Browsers cannot set headers on an upgrade request.
	socketAuth := auth.Middleware(s.tokens, auth.MiddlewareOptions{AllowQueryToken: true})
	e.GET("/ws/rooms/:id", s.handleRoomSocket, socketAuth)
	e.GET("/ws/sessions/:id", s.handleSessionSocket, socketAuth)
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requestLogger feeds echo's access log into slog. Only the path is logged
// so ?token= never reaches the logs.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			s.logger.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	})
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// bind decodes the request body into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(req)
}

// identity returns the caller established by auth.Middleware.
func identity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return auth.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return id, nil
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.String(http.StatusOK, "Hello, World!")
}

func (s *Server) handleProtected(c echo.Context) error {
	return c.String(http.StatusOK, "Protected content!")
}

type healthResponse struct {
	Status      string `json:"status"`
	Channels    int    `json:"channels"`
	Subscribers int    `json:"subscribers"`
	Connections int    `json:"connections"`
}

func (s *Server) handleHealth(c echo.Context) error {
	stats := s.registry.Stats()
	return c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Channels:    stats.Channels,
		Subscribers: stats.Subscribers,
		Connections: len(s.handler.Sessions()),
	})
}
