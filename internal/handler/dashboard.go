package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
)

type dashboardService interface {
	Summary(ctx context.Context, organizerID uint64) (*model.DashboardSummary, error)
	Revenue(ctx context.Context, organizerID uint64, period string, from, to time.Time) ([]model.RevenuePoint, error)
}

// DashboardHandler serves organizer statistics.
type DashboardHandler struct {
	svc dashboardService
}

func NewDashboardHandler(svc dashboardService) *DashboardHandler { return &DashboardHandler{svc: svc} }

func (h *DashboardHandler) Summary(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Summary(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Revenue takes ?period=day|month|year&from=&to=.
func (h *DashboardHandler) Revenue(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return err
	}
	period := c.QueryParam("period")
	out, err := h.svc.Revenue(c.Request().Context(), uid, period, from, to)
	if err != nil {
		return err
	}
	if period == "" {
		period = "month"
	}
	return c.JSON(http.StatusOK, echo.Map{"period": period, "series": out})
}
