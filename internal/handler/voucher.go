package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type voucherService interface {
	Create(ctx context.Context, organizerID, eventID uint64, in service.VoucherInput) (*model.Voucher, error)
	ListByEvent(ctx context.Context, organizerID, eventID uint64) ([]model.Voucher, error)
	Delete(ctx context.Context, organizerID, id uint64) error
	Validate(ctx context.Context, eventID uint64, code string) (*model.Voucher, error)
}

// VoucherHandler serves organizer promo codes.
type VoucherHandler struct {
	svc voucherService
}

func NewVoucherHandler(svc voucherService) *VoucherHandler { return &VoucherHandler{svc: svc} }

func (h *VoucherHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	eventID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.VoucherInput
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Create(c.Request().Context(), uid, eventID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *VoucherHandler) ListByEvent(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	eventID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.svc.ListByEvent(c.Request().Context(), uid, eventID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *VoucherHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), uid, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Validate checks ?event_id=&code= without consuming the voucher.
func (h *VoucherHandler) Validate(c echo.Context) error {
	v, err := h.svc.Validate(c.Request().Context(), queryUint(c, "event_id"), c.QueryParam("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}
