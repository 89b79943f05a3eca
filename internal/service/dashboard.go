package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// DashboardService feeds the organizer dashboard cards and charts.
type DashboardService struct {
	db    *sqlx.DB
	repos *repository.Set
	now   Clock
}

func NewDashboardService(db *sqlx.DB, repos *repository.Set) *DashboardService {
	return &DashboardService{db: db, repos: repos, now: utcNow}
}

func (s *DashboardService) Summary(ctx context.Context, organizerID uint64) (*model.DashboardSummary, error) {
	sum, err := s.repos.Dashboard.Summary(ctx, s.db, organizerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return sum, nil
}

// Revenue returns the chart series.  period defaults to month; the range
// defaults to the trailing year.
func (s *DashboardService) Revenue(ctx context.Context, organizerID uint64, period string, from, to time.Time) ([]model.RevenuePoint, error) {
	if period == "" {
		period = "month"
	}
	format, ok := repository.BucketFormat(period)
	if !ok {
		return nil, apperr.BadRequest("period must be day, month or year")
	}
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}
	if !from.Before(to) {
		return nil, apperr.BadRequest("from must be before to")
	}
	out, err := s.repos.Dashboard.Revenue(ctx, s.db, organizerID, format, from, to)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}
