package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
)

type attendeeService interface {
	ListByEvent(ctx context.Context, organizerID, eventID uint64) ([]model.Attendee, error)
	Mine(ctx context.Context, userID uint64) ([]model.Attendee, error)
	CheckIn(ctx context.Context, organizerID, id uint64) (*model.Attendee, error)
}

// AttendeeHandler serves issued tickets.
type AttendeeHandler struct {
	svc attendeeService
}

func NewAttendeeHandler(svc attendeeService) *AttendeeHandler { return &AttendeeHandler{svc: svc} }

func (h *AttendeeHandler) ListByEvent(c echo.Context) error {
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

func (h *AttendeeHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Mine(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AttendeeHandler) CheckIn(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.CheckIn(c.Request().Context(), uid, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
