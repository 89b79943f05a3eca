package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/storage"
)

type eventService interface {
	Create(ctx context.Context, organizerID uint64, in service.EventInput) (*model.Event, error)
	Update(ctx context.Context, organizerID, id uint64, in service.EventInput) (*model.Event, error)
	Delete(ctx context.Context, organizerID, id uint64) error
	UploadImage(ctx context.Context, organizerID, id uint64, up storage.Upload) (*model.Event, error)
	Mine(ctx context.Context, organizerID uint64) ([]model.Event, error)
	List(ctx context.Context, f model.EventFilter) (*model.Page[model.Event], error)
	Get(ctx context.Context, id uint64) (*model.EventDetail, error)
}

// EventHandler serves event listings.
type EventHandler struct {
	svc eventService
}

func NewEventHandler(svc eventService) *EventHandler { return &EventHandler{svc: svc} }

// List is the public search: q, category, location, upcoming, page, limit.
func (h *EventHandler) List(c echo.Context) error {
	f := model.EventFilter{
		Query:    strings.TrimSpace(c.QueryParam("q")),
		Category: strings.TrimSpace(c.QueryParam("category")),
		Location: strings.TrimSpace(c.QueryParam("location")),
		Upcoming: c.QueryParam("upcoming") == "true" || c.QueryParam("upcoming") == "1",
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 12),
	}
	page, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *EventHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ev, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) Mine(c echo.Context) error {
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

func (h *EventHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	var req service.EventInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ev, err := h.svc.Create(c.Request().Context(), uid, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ev)
}

func (h *EventHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.EventInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ev, err := h.svc.Update(c.Request().Context(), uid, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) Delete(c echo.Context) error {
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

// UploadImage accepts multipart field "image".
func (h *EventHandler) UploadImage(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	up, f, err := formImage(c, "image")
	if err != nil {
		return err
	}
	defer f.Close()
	ev, err := h.svc.UploadImage(c.Request().Context(), uid, id, up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ev)
}
