// Package service holds the marketplace rules.  Handlers decode and
// validate requests, services open database transactions, call
// repositories and return *apperr.Error values for anything a client
// should see.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// JobScheduler defers transaction jobs.  queue.DelayQueue implements it.
type JobScheduler interface {
	Schedule(ctx context.Context, kind model.JobKind, txID uint64, at time.Time) error
	Remove(ctx context.Context, txID uint64) error
}

// Clock returns the current time.  Tests pin it.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// withTx runs fn inside a database transaction and commits when fn returns
// nil.  Any error rolls back.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Internal(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal(err)
	}
	committed = true
	return nil
}

// translate maps repository sentinels onto client errors.  notFoundMsg is
// used for ErrNotFound; everything unknown becomes a 500.
func translate(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(notFoundMsg)
	case errors.Is(err, repository.ErrForbidden):
		return apperr.Forbidden("forbidden")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("conflict").Wrap(err)
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperr.BadRequest("insufficient seats")
	case errors.Is(err, repository.ErrInsufficientPoints):
		return apperr.BadRequest("insufficient points")
	case errors.Is(err, repository.ErrEmailExists):
		return apperr.Conflict("email already registered")
	}
	return apperr.Internal(err)
}

// ownedEvent loads an event and checks the organizer owns it.
func ownedEvent(ctx context.Context, db repository.DBExecutor, repos *repository.Set, eventID, organizerID uint64) (*model.Event, error) {
	e, err := repos.Events.GetOwned(ctx, db, eventID, organizerID)
	if err != nil {
		return nil, translate(err, "event not found")
	}
	return e, nil
}
