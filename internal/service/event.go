package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/storage"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// EventInput is the body of POST/PUT /events.
type EventInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Location    string          `json:"location"`
	StartAt     time.Time       `json:"start_at"`
	EndAt       time.Time       `json:"end_at"`
	Price       decimal.Decimal `json:"price"`
	TotalSeats  int             `json:"total_seats"`
}

func (in EventInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(3, 200)),
		validation.Field(&in.Description, validation.Required),
		validation.Field(&in.Category, validation.Required, validation.Length(1, 80)),
		validation.Field(&in.Location, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.StartAt, validation.Required),
		validation.Field(&in.EndAt, validation.Required, validation.By(func(interface{}) error {
			if !in.EndAt.After(in.StartAt) {
				return errors.New("must be after start_at")
			}
			return nil
		})),
		validation.Field(&in.Price, validation.By(nonNegative)),
		validation.Field(&in.TotalSeats, validation.Min(0)),
	)
}

func nonNegative(v interface{}) error {
	if d, ok := v.(decimal.Decimal); ok && d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

// EventService manages event listings and their images.
type EventService struct {
	db      *sqlx.DB
	repos   *repository.Set
	images  storage.ImageStore
	maxFile int64
	now     Clock
	logger  *slog.Logger
}

func NewEventService(db *sqlx.DB, repos *repository.Set, images storage.ImageStore, maxFile int64, logger *slog.Logger) *EventService {
	return &EventService{db: db, repos: repos, images: images, maxFile: maxFile, now: utcNow, logger: logger.With("component", "events")}
}

func (s *EventService) Create(ctx context.Context, organizerID uint64, in EventInput) (*model.Event, error) {
	e := &model.Event{
		OrganizerID: organizerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Location:    strings.TrimSpace(in.Location),
		StartAt:     in.StartAt.UTC(),
		EndAt:       in.EndAt.UTC(),
		Price:       in.Price,
		TotalSeats:  in.TotalSeats,
	}
	if err := s.repos.Events.Create(ctx, s.db, e); err != nil {
		return nil, apperr.Internal(err)
	}
	return e, nil
}

// Update edits an owned event.  Changing total_seats moves available_seats
// by the same amount and fails when seats already sold would not fit.
func (s *EventService) Update(ctx context.Context, organizerID, id uint64, in EventInput) (*model.Event, error) {
	var e *model.Event
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cur, err := s.repos.Events.GetForUpdate(ctx, tx, id)
		if err != nil {
			return translate(err, "event not found")
		}
		if cur.OrganizerID != organizerID {
			return apperr.Forbidden("not your event")
		}
		delta := in.TotalSeats - cur.TotalSeats
		cur.Title, cur.Description = strings.TrimSpace(in.Title), in.Description
		cur.Category, cur.Location = strings.TrimSpace(in.Category), strings.TrimSpace(in.Location)
		cur.StartAt, cur.EndAt, cur.Price = in.StartAt.UTC(), in.EndAt.UTC(), in.Price
		if err := s.repos.Events.Update(ctx, tx, cur, delta); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return apperr.Conflict("total_seats is below the seats already sold")
			}
			return apperr.Internal(err)
		}
		cur.TotalSeats += delta
		cur.AvailableSeats += delta
		e = cur
		return nil
	})
	return e, err
}

// Delete removes an owned event that has never been purchased.
func (s *EventService) Delete(ctx context.Context, organizerID, id uint64) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := ownedEvent(ctx, tx, s.repos, id, organizerID); err != nil {
			return err
		}
		n, err := s.repos.Events.CountTransactions(ctx, tx, id)
		if err != nil {
			return apperr.Internal(err)
		}
		if n > 0 {
			return apperr.Conflict("event has transactions")
		}
		err = s.repos.Events.Delete(ctx, tx, id, organizerID)
		if errors.Is(err, repository.ErrConflict) {
			return apperr.Conflict("event has transactions")
		}
		return translate(err, "event not found")
	})
}

// UploadImage stores the event image and saves its URL.
func (s *EventService) UploadImage(ctx context.Context, organizerID, id uint64, up storage.Upload) (*model.Event, error) {
	e, err := ownedEvent(ctx, s.db, s.repos, id, organizerID)
	if err != nil {
		return nil, err
	}
	ext, err := storage.CheckImage(up, s.maxFile)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}
	url, err := s.images.Put(ctx, utils.NewObjectKey(fmt.Sprintf("events/%d", id), ext), up.Reader, up.Size, up.ContentType)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.repos.Events.SetImage(ctx, s.db, id, url); err != nil {
		return nil, apperr.Internal(err)
	}
	e.ImageURL = &url
	return e, nil
}

// Mine lists the organizer's events.
func (s *EventService) Mine(ctx context.Context, organizerID uint64) ([]model.Event, error) {
	out, err := s.repos.Events.ListByOrganizer(ctx, s.db, organizerID)
	return out, translate(err, "")
}

// List is the public search.  Page and limit are clamped to sane values.
func (s *EventService) List(ctx context.Context, f model.EventFilter) (*model.Page[model.Event], error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 12
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	items, total, err := s.repos.Events.Search(ctx, s.db, f, s.now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &model.Page[model.Event]{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// Get returns the public detail view with ticket types.
func (s *EventService) Get(ctx context.Context, id uint64) (*model.EventDetail, error) {
	e, err := s.repos.Events.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, translate(err, "event not found")
	}
	types, err := s.repos.TicketTypes.ListByEvent(ctx, s.db, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &model.EventDetail{Event: *e, TicketTypes: types}, nil
}
