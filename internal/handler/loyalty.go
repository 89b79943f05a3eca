package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type loyaltyService interface {
	Balance(ctx context.Context, userID uint64) (int64, error)
	Points(ctx context.Context, userID uint64) (*service.PointSummary, error)
	Coupons(ctx context.Context, userID uint64, status string) ([]model.Coupon, error)
}

// LoyaltyHandler serves points and coupons of the current user.
type LoyaltyHandler struct {
	svc loyaltyService
}

func NewLoyaltyHandler(svc loyaltyService) *LoyaltyHandler { return &LoyaltyHandler{svc: svc} }

func (h *LoyaltyHandler) Points(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Points(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoyaltyHandler) Balance(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.Balance(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": n})
}

// Coupons takes an optional ?status=ACTIVE|USED|EXPIRED.
func (h *LoyaltyHandler) Coupons(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Coupons(c.Request().Context(), uid, strings.ToUpper(c.QueryParam("status")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
