package repository

import (
	"context"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const eventColumns = `id, organizer_id, title, description, category, location, start_at, end_at,
	image_url, price, total_seats, available_seats, created_at, updated_at`

// EventRepo provides CRUD operations for events and the legacy seat counter
// used by events sold without ticket types.
type EventRepo struct{}

func NewEventRepo() *EventRepo { return &EventRepo{} }

// Create inserts e and fills its ID.  AvailableSeats starts at TotalSeats.
func (r *EventRepo) Create(ctx context.Context, db DBExecutor, e *model.Event) error {
	const q = `INSERT INTO events (organizer_id, title, description, category, location, start_at, end_at,
		price, total_seats, available_seats) VALUES (?,?,?,?,?,?,?,?,?,?)`
	id, err := lastID(db.ExecContext(ctx, q, e.OrganizerID, e.Title, e.Description, e.Category, e.Location,
		e.StartAt, e.EndAt, e.Price, e.TotalSeats, e.TotalSeats))
	if err != nil {
		return err
	}
	e.ID = id
	e.AvailableSeats = e.TotalSeats
	return nil
}

// GetByID returns a single event.
func (r *EventRepo) GetByID(ctx context.Context, db DBExecutor, id uint64) (*model.Event, error) {
	var e model.Event
	if err := db.GetContext(ctx, &e, "SELECT "+eventColumns+" FROM events WHERE id=?", id); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// GetForUpdate locks the event row for the rest of the transaction.
func (r *EventRepo) GetForUpdate(ctx context.Context, db DBExecutor, id uint64) (*model.Event, error) {
	var e model.Event
	if err := db.GetContext(ctx, &e, "SELECT "+eventColumns+" FROM events WHERE id=? FOR UPDATE", id); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// GetOwned returns the event when organizerID owns it.  A missing event is
// ErrNotFound; an event owned by someone else is ErrForbidden.
func (r *EventRepo) GetOwned(ctx context.Context, db DBExecutor, id, organizerID uint64) (*model.Event, error) {
	e, err := r.GetByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if e.OrganizerID != organizerID {
		return nil, ErrForbidden
	}
	return e, nil
}

// Update writes the editable columns.  Changing TotalSeats moves
// available_seats by the same delta; a shrink below what is already sold is
// ErrInsufficientStock.
func (r *EventRepo) Update(ctx context.Context, db DBExecutor, e *model.Event, seatDelta int) error {
	const q = `UPDATE events SET title=?, description=?, category=?, location=?, start_at=?, end_at=?, price=?,
		total_seats = total_seats + ?, available_seats = available_seats + ?
		WHERE id=? AND organizer_id=? AND CAST(available_seats AS SIGNED) + ? >= 0`
	err := affected(db.ExecContext(ctx, q, e.Title, e.Description, e.Category, e.Location, e.StartAt, e.EndAt,
		e.Price, seatDelta, seatDelta, e.ID, e.OrganizerID, seatDelta))
	if err == ErrConflict {
		return ErrInsufficientStock
	}
	return err
}

// SetImage stores the public URL of the event image.
func (r *EventRepo) SetImage(ctx context.Context, db DBExecutor, id uint64, url string) error {
	_, err := db.ExecContext(ctx, "UPDATE events SET image_url=? WHERE id=?", url, id)
	return err
}

// Delete removes an event.  Ticket types and vouchers cascade.  An event
// still referenced by a transaction is ErrConflict.
func (r *EventRepo) Delete(ctx context.Context, db DBExecutor, id, organizerID uint64) error {
	err := affected(db.ExecContext(ctx, "DELETE FROM events WHERE id=? AND organizer_id=?", id, organizerID))
	switch {
	case err == ErrConflict:
		return ErrNotFound
	case isForeignKey(err):
		return ErrConflict
	}
	return err
}

// CountTransactions counts every transaction of the event whatever its
// status.  Transactions keep their event row, so any of them blocks a delete.
func (r *EventRepo) CountTransactions(ctx context.Context, db DBExecutor, id uint64) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM transactions WHERE event_id=?", id)
	return n, err
}

// TakeSeats decrements the legacy counter.  It never drives it below zero.
func (r *EventRepo) TakeSeats(ctx context.Context, db DBExecutor, id uint64, n int) error {
	err := affected(db.ExecContext(ctx,
		"UPDATE events SET available_seats = available_seats - ? WHERE id=? AND available_seats >= ?", n, id, n))
	if err == ErrConflict {
		return ErrInsufficientStock
	}
	return err
}

// ReturnSeats gives n seats back, capped at total_seats.
func (r *EventRepo) ReturnSeats(ctx context.Context, db DBExecutor, id uint64, n int) error {
	_, err := db.ExecContext(ctx,
		"UPDATE events SET available_seats = LEAST(available_seats + ?, total_seats) WHERE id=?", n, id)
	return err
}

// ListByOrganizer returns the organizer's events, newest start first.
func (r *EventRepo) ListByOrganizer(ctx context.Context, db DBExecutor, organizerID uint64) ([]model.Event, error) {
	out := []model.Event{}
	err := db.SelectContext(ctx, &out,
		"SELECT "+eventColumns+" FROM events WHERE organizer_id=? ORDER BY start_at DESC", organizerID)
	return out, err
}
