package service

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// TicketTypeInput is the body of POST /events/:id/tickets and PUT /tickets/:id.
type TicketTypeInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

func (in TicketTypeInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&in.Description, validation.Length(0, 500)),
		validation.Field(&in.Price, validation.By(nonNegative)),
		validation.Field(&in.Quantity, validation.Required, validation.Min(1)),
	)
}

// TicketService manages ticket types of owned events.
type TicketService struct {
	db    *sqlx.DB
	repos *repository.Set
}

func NewTicketService(db *sqlx.DB, repos *repository.Set) *TicketService {
	return &TicketService{db: db, repos: repos}
}

func (s *TicketService) Create(ctx context.Context, organizerID, eventID uint64, in TicketTypeInput) (*model.TicketType, error) {
	if _, err := ownedEvent(ctx, s.db, s.repos, eventID, organizerID); err != nil {
		return nil, err
	}
	t := &model.TicketType{
		EventID: eventID, Name: strings.TrimSpace(in.Name), Description: in.Description,
		Price: in.Price, Quantity: in.Quantity,
	}
	if err := s.repos.TicketTypes.Create(ctx, s.db, t); err != nil {
		return nil, apperr.Internal(err)
	}
	return t, nil
}

// owned loads a ticket type and checks its event belongs to organizerID.
func (s *TicketService) owned(ctx context.Context, db repository.DBExecutor, organizerID, id uint64) (*model.TicketType, error) {
	t, err := s.repos.TicketTypes.GetByID(ctx, db, id)
	if err != nil {
		return nil, translate(err, "ticket type not found")
	}
	if _, err := ownedEvent(ctx, db, s.repos, t.EventID, organizerID); err != nil {
		return nil, err
	}
	return t, nil
}

// Update changes a ticket type.  A new quantity moves the available stock
// by the same delta; it may not drop below what is already sold.
func (s *TicketService) Update(ctx context.Context, organizerID, id uint64, in TicketTypeInput) (*model.TicketType, error) {
	var t *model.TicketType
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cur, err := s.owned(ctx, tx, organizerID, id)
		if err != nil {
			return err
		}
		delta := in.Quantity - cur.Quantity
		cur.Name, cur.Description, cur.Price = strings.TrimSpace(in.Name), in.Description, in.Price
		if err := s.repos.TicketTypes.Update(ctx, tx, cur, delta); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return apperr.Conflict("quantity is below the tickets already sold")
			}
			return apperr.Internal(err)
		}
		cur.Quantity += delta
		cur.AvailableQuantity += delta
		t = cur
		return nil
	})
	return t, err
}

// Delete removes a ticket type that has not sold anything.
func (s *TicketService) Delete(ctx context.Context, organizerID, id uint64) error {
	if _, err := s.owned(ctx, s.db, organizerID, id); err != nil {
		return err
	}
	err := s.repos.TicketTypes.Delete(ctx, s.db, id)
	if errors.Is(err, repository.ErrConflict) {
		return apperr.Conflict("ticket type has sales")
	}
	return translate(err, "ticket type not found")
}

// ListByEvent is public.
func (s *TicketService) ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketType, error) {
	if _, err := s.repos.Events.GetByID(ctx, s.db, eventID); err != nil {
		return nil, translate(err, "event not found")
	}
	out, err := s.repos.TicketTypes.ListByEvent(ctx, s.db, eventID)
	return out, translate(err, "")
}
