package service

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// AttendeeService lists and checks in issued tickets.
type AttendeeService struct {
	db    *sqlx.DB
	repos *repository.Set
	now   Clock
}

func NewAttendeeService(db *sqlx.DB, repos *repository.Set) *AttendeeService {
	return &AttendeeService{db: db, repos: repos, now: utcNow}
}

func (s *AttendeeService) ListByEvent(ctx context.Context, organizerID, eventID uint64) ([]model.Attendee, error) {
	if _, err := ownedEvent(ctx, s.db, s.repos, eventID, organizerID); err != nil {
		return nil, err
	}
	out, err := s.repos.Attendees.ListByEvent(ctx, s.db, eventID)
	return out, translate(err, "")
}

func (s *AttendeeService) Mine(ctx context.Context, userID uint64) ([]model.Attendee, error) {
	out, err := s.repos.Attendees.ListByUser(ctx, s.db, userID)
	return out, translate(err, "")
}

// CheckIn admits an attendee once.
func (s *AttendeeService) CheckIn(ctx context.Context, organizerID, id uint64) (*model.Attendee, error) {
	a, err := s.repos.Attendees.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, translate(err, "attendee not found")
	}
	if _, err := ownedEvent(ctx, s.db, s.repos, a.EventID, organizerID); err != nil {
		return nil, err
	}
	at := s.now()
	if err := s.repos.Attendees.CheckIn(ctx, s.db, id, at); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("attendee already checked in")
		}
		return nil, apperr.Internal(err)
	}
	a.CheckedInAt = &at
	return a, nil
}
