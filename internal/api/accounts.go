// ABOUTME: Account registration and login handlers
// ABOUTME: Hashes passwords with argon2id and issues HS256 tokens

package api

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/xiaozhu6-2-2/Chat/internal/auth"
	"github.com/xiaozhu6-2-2/Chat/internal/store"
)

var accountPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)

// validateAccount backs the "account" validation tag.
func validateAccount(fl validator.FieldLevel) bool {
	return accountPattern.MatchString(fl.Field().String())
}

type registerRequest struct {
	Account  string `json:"account" validate:"required,account"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Username string `json:"username" validate:"required,max=64"`
}

type registerResponse struct {
	Success bool `json:"success"`
}

type loginRequest struct {
	Account  string `json:"account" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return httpError(err)
	}

	err = s.store.CreateUser(c.Request().Context(), &store.User{
		Account:      req.Account,
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		return httpError(err)
	}

	s.logger.Info("account registered", "account", req.Account)
	return c.JSON(http.StatusOK, registerResponse{Success: true})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	invalid := echo.NewHTTPError(http.StatusUnauthorized, "invalid account or password")

	user, err := s.store.GetUser(c.Request().Context(), req.Account)
	if errors.Is(err, store.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return httpError(err)
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", "account", user.Account, "error", err)
		return invalid
	}
	if !ok {
		return invalid
	}

	token, err := s.tokens.Generate(user.Account, s.tokenTTL)
	if err != nil {
		return httpError(err)
	}

	username := user.Username
	if username == "" {
		username = user.Account
	}
	return c.JSON(http.StatusOK, loginResponse{Username: username, Token: token})
}
