package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type ticketService interface {
	Create(ctx context.Context, organizerID, eventID uint64, in service.TicketTypeInput) (*model.TicketType, error)
	Update(ctx context.Context, organizerID, id uint64, in service.TicketTypeInput) (*model.TicketType, error)
	Delete(ctx context.Context, organizerID, id uint64) error
	ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketType, error)
}

// TicketHandler serves ticket types.
type TicketHandler struct {
	svc ticketService
}

func NewTicketHandler(svc ticketService) *TicketHandler { return &TicketHandler{svc: svc} }

func (h *TicketHandler) ListByEvent(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.svc.ListByEvent(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *TicketHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	eventID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.TicketTypeInput
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.svc.Create(c.Request().Context(), uid, eventID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TicketHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.TicketTypeInput
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.svc.Update(c.Request().Context(), uid, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Delete(c echo.Context) error {
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
