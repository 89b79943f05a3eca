package service

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// VoucherInput is the body of POST /events/:id/vouchers.
type VoucherInput struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Quota          int             `json:"quota"`
	StartsAt       time.Time       `json:"starts_at"`
	EndsAt         time.Time       `json:"ends_at"`
}

func (in VoucherInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Code, validation.Required, validation.Length(3, 40)),
		validation.Field(&in.DiscountAmount, validation.By(func(v interface{}) error {
			if d := v.(decimal.Decimal); !d.IsPositive() {
				return errors.New("must be greater than zero")
			}
			return nil
		})),
		validation.Field(&in.Quota, validation.Required, validation.Min(1)),
		validation.Field(&in.StartsAt, validation.Required),
		validation.Field(&in.EndsAt, validation.Required, validation.By(func(interface{}) error {
			if !in.EndsAt.After(in.StartsAt) {
				return errors.New("must be after starts_at")
			}
			return nil
		})),
	)
}

// VoucherService manages organizer promo codes.
type VoucherService struct {
	db    *sqlx.DB
	repos *repository.Set
	now   Clock
}

func NewVoucherService(db *sqlx.DB, repos *repository.Set) *VoucherService {
	return &VoucherService{db: db, repos: repos, now: utcNow}
}

func (s *VoucherService) Create(ctx context.Context, organizerID, eventID uint64, in VoucherInput) (*model.Voucher, error) {
	if _, err := ownedEvent(ctx, s.db, s.repos, eventID, organizerID); err != nil {
		return nil, err
	}
	v := &model.Voucher{
		EventID: eventID, Code: in.Code, DiscountAmount: in.DiscountAmount, Quota: in.Quota,
		StartsAt: in.StartsAt.UTC(), EndsAt: in.EndsAt.UTC(),
	}
	if err := s.repos.Vouchers.Create(ctx, s.db, v); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("voucher code already exists for this event")
		}
		return nil, apperr.Internal(err)
	}
	return v, nil
}

func (s *VoucherService) ListByEvent(ctx context.Context, organizerID, eventID uint64) ([]model.Voucher, error) {
	if _, err := ownedEvent(ctx, s.db, s.repos, eventID, organizerID); err != nil {
		return nil, err
	}
	out, err := s.repos.Vouchers.ListByEvent(ctx, s.db, eventID)
	return out, translate(err, "")
}

// Delete removes an unused voucher of an owned event.
func (s *VoucherService) Delete(ctx context.Context, organizerID, id uint64) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		v, err := s.repos.Vouchers.GetByID(ctx, tx, id)
		if err != nil {
			return translate(err, "voucher not found")
		}
		if _, err := ownedEvent(ctx, tx, s.repos, v.EventID, organizerID); err != nil {
			return err
		}
		if err := s.repos.Vouchers.Delete(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperr.Conflict("voucher has been used")
			}
			return apperr.Internal(err)
		}
		return nil
	})
}

// Validate checks a code for checkout without consuming it.
func (s *VoucherService) Validate(ctx context.Context, eventID uint64, code string) (*model.Voucher, error) {
	if eventID == 0 || code == "" {
		return nil, apperr.BadRequest("event_id and code are required")
	}
	v, err := s.repos.Vouchers.GetByCode(ctx, s.db, eventID, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.BadRequest("invalid voucher code")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !v.Usable(s.now()) {
		return nil, apperr.BadRequest("voucher is not available")
	}
	return v, nil
}
