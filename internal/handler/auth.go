package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type authService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Refresh(ctx context.Context, raw string) (*service.AuthResult, error)
	Logout(ctx context.Context, userID uint64, raw string) error
	Me(ctx context.Context, userID uint64) (*model.User, error)
	UpdateMe(ctx context.Context, userID uint64, in service.ProfileInput) (*model.User, error)
}

// AuthHandler serves /auth.
type AuthHandler struct {
	svc authService
}

func NewAuthHandler(svc authService) *AuthHandler { return &AuthHandler{svc: svc} }

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates an account and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Logout revokes the given refresh token, or all of the caller's tokens
// when the body is empty.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	uid, _ := getUserID(c)
	if err := h.svc.Logout(c.Request().Context(), uid, req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Me(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) UpdateMe(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	var req service.ProfileInput
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.UpdateMe(c.Request().Context(), uid, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
