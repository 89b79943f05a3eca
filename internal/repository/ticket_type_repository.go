package repository

import (
	"context"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const ticketTypeColumns = `id, event_id, name, description, price, quantity, available_quantity, created_at, updated_at`

// TicketTypeRepo stores priced ticket tiers.  Every stock change goes
// through a guarded UPDATE so available_quantity cannot go negative.
type TicketTypeRepo struct{}

func NewTicketTypeRepo() *TicketTypeRepo { return &TicketTypeRepo{} }

func (r *TicketTypeRepo) Create(ctx context.Context, db DBExecutor, t *model.TicketType) error {
	id, err := lastID(db.ExecContext(ctx,
		"INSERT INTO ticket_types (event_id, name, description, price, quantity, available_quantity) VALUES (?,?,?,?,?,?)",
		t.EventID, t.Name, t.Description, t.Price, t.Quantity, t.Quantity))
	if err != nil {
		return err
	}
	t.ID = id
	t.AvailableQuantity = t.Quantity
	return nil
}

func (r *TicketTypeRepo) GetByID(ctx context.Context, db DBExecutor, id uint64) (*model.TicketType, error) {
	var t model.TicketType
	if err := db.GetContext(ctx, &t, "SELECT "+ticketTypeColumns+" FROM ticket_types WHERE id=?", id); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TicketTypeRepo) ListByEvent(ctx context.Context, db DBExecutor, eventID uint64) ([]model.TicketType, error) {
	out := []model.TicketType{}
	err := db.SelectContext(ctx, &out,
		"SELECT "+ticketTypeColumns+" FROM ticket_types WHERE event_id=? ORDER BY price ASC, id ASC", eventID)
	return out, err
}

// CountByEvent tells ticket-type events apart from legacy single-price ones.
func (r *TicketTypeRepo) CountByEvent(ctx context.Context, db DBExecutor, eventID uint64) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM ticket_types WHERE event_id=?", eventID)
	return n, err
}

// LockMany locks the requested ticket types of one event, ordered by id so
// concurrent buyers acquire locks in the same order.
func (r *TicketTypeRepo) LockMany(ctx context.Context, db DBExecutor, eventID uint64, ids []uint64) ([]model.TicketType, error) {
	out := []model.TicketType{}
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, eventID)
	for _, id := range ids {
		args = append(args, id)
	}
	q := "SELECT " + ticketTypeColumns + " FROM ticket_types WHERE event_id=? AND id IN (" +
		placeholders(len(ids)) + ") ORDER BY id FOR UPDATE"
	err := db.SelectContext(ctx, &out, q, args...)
	return out, err
}

// Update writes name, description and price and moves quantity and
// available_quantity by delta.  A negative delta larger than the unsold
// stock is ErrInsufficientStock.
func (r *TicketTypeRepo) Update(ctx context.Context, db DBExecutor, t *model.TicketType, delta int) error {
	const q = `UPDATE ticket_types SET name=?, description=?, price=?,
		quantity = quantity + ?, available_quantity = available_quantity + ?
		WHERE id=? AND CAST(available_quantity AS SIGNED) + ? >= 0`
	err := affected(db.ExecContext(ctx, q, t.Name, t.Description, t.Price, delta, delta, t.ID, delta))
	if err == ErrConflict {
		return ErrInsufficientStock
	}
	return err
}

// Delete removes a ticket type that has not sold anything.  A sold type is
// ErrConflict, and so is one whose stock came back but whose detail rows
// still reference it.
func (r *TicketTypeRepo) Delete(ctx context.Context, db DBExecutor, id uint64) error {
	err := affected(db.ExecContext(ctx,
		"DELETE FROM ticket_types WHERE id=? AND available_quantity = quantity", id))
	if isForeignKey(err) {
		return ErrConflict
	}
	return err
}

// Take decrements available_quantity by n.
func (r *TicketTypeRepo) Take(ctx context.Context, db DBExecutor, id uint64, n int) error {
	err := affected(db.ExecContext(ctx,
		"UPDATE ticket_types SET available_quantity = available_quantity - ? WHERE id=? AND available_quantity >= ?",
		n, id, n))
	if err == ErrConflict {
		return ErrInsufficientStock
	}
	return err
}

// Return increments available_quantity by n, capped at quantity.
func (r *TicketTypeRepo) Return(ctx context.Context, db DBExecutor, id uint64, n int) error {
	_, err := db.ExecContext(ctx,
		"UPDATE ticket_types SET available_quantity = LEAST(available_quantity + ?, quantity) WHERE id=?", n, id)
	return err
}
