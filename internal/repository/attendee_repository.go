package repository

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const attendeeColumns = `a.id, a.transaction_id, a.event_id, a.user_id, a.ticket_type_id, a.ticket_code, a.checked_in_at, a.created_at`

// AttendeeRepo stores issued admissions.
type AttendeeRepo struct{}

func NewAttendeeRepo() *AttendeeRepo { return &AttendeeRepo{} }

// CountByTransaction returns how many attendees a transaction already has.
func (r *AttendeeRepo) CountByTransaction(ctx context.Context, db DBExecutor, txID uint64) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM attendees WHERE transaction_id=?", txID)
	return n, err
}

// CreateBulk inserts attendees in one statement.
func (r *AttendeeRepo) CreateBulk(ctx context.Context, db DBExecutor, rows []model.Attendee) error {
	if len(rows) == 0 {
		return nil
	}
	query := `INSERT INTO attendees (transaction_id, event_id, user_id, ticket_type_id, ticket_code) VALUES `
	args := make([]any, 0, len(rows)*5)
	for i, a := range rows {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, a.TransactionID, a.EventID, a.UserID, a.TicketTypeID, a.TicketCode)
	}
	_, err := db.ExecContext(ctx, query, args...)
	return err
}

func (r *AttendeeRepo) GetByID(ctx context.Context, db DBExecutor, id uint64) (*model.Attendee, error) {
	var a model.Attendee
	err := db.GetContext(ctx, &a, "SELECT "+attendeeColumns+", u.name, u.email FROM attendees a JOIN users u ON u.id = a.user_id WHERE a.id=?", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListByEvent returns the attendee list with buyer name and email.
func (r *AttendeeRepo) ListByEvent(ctx context.Context, db DBExecutor, eventID uint64) ([]model.Attendee, error) {
	out := []model.Attendee{}
	err := db.SelectContext(ctx, &out,
		"SELECT "+attendeeColumns+", u.name, u.email FROM attendees a JOIN users u ON u.id = a.user_id WHERE a.event_id=? ORDER BY a.id",
		eventID)
	return out, err
}

// ListByTransaction returns the tickets issued for one transaction.
func (r *AttendeeRepo) ListByTransaction(ctx context.Context, db DBExecutor, txID uint64) ([]model.Attendee, error) {
	out := []model.Attendee{}
	err := db.SelectContext(ctx, &out,
		"SELECT "+attendeeColumns+", u.name, u.email FROM attendees a JOIN users u ON u.id = a.user_id WHERE a.transaction_id=? ORDER BY a.id",
		txID)
	return out, err
}

// ListByUser returns the tickets a customer holds.
func (r *AttendeeRepo) ListByUser(ctx context.Context, db DBExecutor, userID uint64) ([]model.Attendee, error) {
	out := []model.Attendee{}
	err := db.SelectContext(ctx, &out,
		"SELECT "+attendeeColumns+", u.name, u.email FROM attendees a JOIN users u ON u.id = a.user_id WHERE a.user_id=? ORDER BY a.id DESC",
		userID)
	return out, err
}

// CheckIn stamps checked_in_at once.  A second check-in is ErrConflict.
func (r *AttendeeRepo) CheckIn(ctx context.Context, db DBExecutor, id uint64, at time.Time) error {
	return affected(db.ExecContext(ctx,
		"UPDATE attendees SET checked_in_at=? WHERE id=? AND checked_in_at IS NULL", at, id))
}
