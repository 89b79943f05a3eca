package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/storage"
)

type transactionService interface {
	Create(ctx context.Context, userID uint64, in service.PurchaseInput) (*model.Transaction, error)
	SubmitProof(ctx context.Context, userID, id uint64, up storage.Upload) (*model.Transaction, error)
	Cancel(ctx context.Context, userID, id uint64) (*model.Transaction, error)
	Decide(ctx context.Context, organizerID, id uint64, to model.TransactionStatus) (*model.Transaction, error)
	Get(ctx context.Context, userID uint64, role model.Role, id uint64) (*model.Transaction, error)
	ListMine(ctx context.Context, userID uint64) ([]model.Transaction, error)
	ListForEvent(ctx context.Context, organizerID, eventID uint64, status model.TransactionStatus) ([]model.Transaction, error)
}

// TransactionHandler serves purchases and their review.
type TransactionHandler struct {
	svc transactionService
}

func NewTransactionHandler(svc transactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *TransactionHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	var req service.PurchaseInput
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.svc.Create(c.Request().Context(), uid, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

// SubmitProof accepts multipart field "proof".
func (h *TransactionHandler) SubmitProof(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	up, f, err := formImage(c, "proof")
	if err != nil {
		return err
	}
	defer f.Close()
	t, err := h.svc.SubmitProof(c.Request().Context(), uid, id, up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.Cancel(c.Request().Context(), uid, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// UpdateStatus is the organizer decision: {"status": "DONE"|"REJECTED"}.
func (h *TransactionHandler) UpdateStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req statusReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		return apperr.BadRequest("status is required")
	}
	t, err := h.svc.Decide(c.Request().Context(), uid, id, model.TransactionStatus(strings.ToUpper(req.Status)))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), uid, middleware.Role(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// ListForEvent takes an optional ?status= filter.
func (h *TransactionHandler) ListForEvent(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	eventID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	status := model.TransactionStatus(strings.ToUpper(c.QueryParam("status")))
	out, err := h.svc.ListForEvent(c.Request().Context(), uid, eventID, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
