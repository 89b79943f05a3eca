package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// PointSummary is the body of GET /points.
type PointSummary struct {
	Balance int64                `json:"balance"`
	Points  []model.Point        `json:"points"`
	History []model.PointHistory `json:"history"`
}

// LoyaltyService exposes a user's points and coupons.
type LoyaltyService struct {
	db    *sqlx.DB
	repos *repository.Set
	now   Clock
}

func NewLoyaltyService(db *sqlx.DB, repos *repository.Set) *LoyaltyService {
	return &LoyaltyService{db: db, repos: repos, now: utcNow}
}

func (s *LoyaltyService) Balance(ctx context.Context, userID uint64) (int64, error) {
	n, err := s.repos.Points.Balance(ctx, s.db, userID, s.now())
	return n, translate(err, "")
}

func (s *LoyaltyService) Points(ctx context.Context, userID uint64) (*PointSummary, error) {
	bal, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repos.Points.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	hist, err := s.repos.Points.History(ctx, s.db, userID, 100)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &PointSummary{Balance: bal, Points: rows, History: hist}, nil
}

// Coupons lists the user's coupons, optionally for one status.
func (s *LoyaltyService) Coupons(ctx context.Context, userID uint64, status string) ([]model.Coupon, error) {
	st := model.RewardStatus(status)
	switch st {
	case "", model.RewardActive, model.RewardUsed, model.RewardExpired:
	default:
		return nil, apperr.BadRequest("status must be ACTIVE, USED or EXPIRED")
	}
	out, err := s.repos.Coupons.ListByUser(ctx, s.db, userID, st)
	return out, translate(err, "")
}
