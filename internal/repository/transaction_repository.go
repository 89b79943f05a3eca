package repository

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const transactionColumns = `id, invoice_no, user_id, event_id, status, quantity, subtotal, discount_amount, points_used,
	total_amount, voucher_id, coupon_id, payment_proof_url, payment_deadline, confirm_deadline, created_at, updated_at`

// TransactionRepo provides persistence for purchases and their detail lines.
// Status changes are conditional on the current status so a transition is
// applied at most once even when a job and a user race for the same row.
type TransactionRepo struct{}

func NewTransactionRepo() *TransactionRepo { return &TransactionRepo{} }

// Create inserts t and fills its ID.  Details are inserted separately with
// CreateDetails.
func (r *TransactionRepo) Create(ctx context.Context, db DBExecutor, t *model.Transaction) error {
	const q = `INSERT INTO transactions (invoice_no, user_id, event_id, status, quantity, subtotal, discount_amount,
		points_used, total_amount, voucher_id, coupon_id, payment_deadline) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	id, err := lastID(db.ExecContext(ctx, q, t.InvoiceNo, t.UserID, t.EventID, t.Status, t.Quantity, t.Subtotal,
		t.DiscountAmount, t.PointsUsed, t.TotalAmount, t.VoucherID, t.CouponID, t.PaymentDeadline))
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// CreateDetails inserts all detail rows for one transaction in a single
// statement.  An empty slice is a no-op.
func (r *TransactionRepo) CreateDetails(ctx context.Context, db DBExecutor, txID uint64, details []model.TransactionDetail) error {
	if len(details) == 0 {
		return nil
	}
	query := `INSERT INTO transaction_details (transaction_id, ticket_type_id, quantity, unit_price, subtotal) VALUES `
	args := make([]any, 0, len(details)*5)
	for i, d := range details {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, txID, d.TicketTypeID, d.Quantity, d.UnitPrice, d.Subtotal)
	}
	_, err := db.ExecContext(ctx, query, args...)
	return err
}

func (r *TransactionRepo) GetByID(ctx context.Context, db DBExecutor, id uint64) (*model.Transaction, error) {
	var t model.Transaction
	if err := db.GetContext(ctx, &t, "SELECT "+transactionColumns+" FROM transactions WHERE id=?", id); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// GetForUpdate locks the transaction row.
func (r *TransactionRepo) GetForUpdate(ctx context.Context, db DBExecutor, id uint64) (*model.Transaction, error) {
	var t model.Transaction
	if err := db.GetContext(ctx, &t, "SELECT "+transactionColumns+" FROM transactions WHERE id=? FOR UPDATE", id); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// Details returns the detail lines of one transaction.
func (r *TransactionRepo) Details(ctx context.Context, db DBExecutor, txID uint64) ([]model.TransactionDetail, error) {
	out := []model.TransactionDetail{}
	err := db.SelectContext(ctx, &out,
		"SELECT id, transaction_id, ticket_type_id, quantity, unit_price, subtotal FROM transaction_details WHERE transaction_id=? ORDER BY id",
		txID)
	return out, err
}

// UpdateStatus moves a transaction from one status to another.  When the
// row is no longer in from the result is ErrConflict.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, db DBExecutor, id uint64, from, to model.TransactionStatus) error {
	return affected(db.ExecContext(ctx,
		"UPDATE transactions SET status=? WHERE id=? AND status=?", to, id, from))
}

// AttachProof stores the payment proof and moves the transaction to
// WAITING_CONFIRMATION with a confirmation deadline.
func (r *TransactionRepo) AttachProof(ctx context.Context, db DBExecutor, id uint64, url string, confirmBy time.Time) error {
	const q = `UPDATE transactions SET status='WAITING_CONFIRMATION', payment_proof_url=?, confirm_deadline=?
		WHERE id=? AND status='WAITING_PAYMENT'`
	return affected(db.ExecContext(ctx, q, url, confirmBy, id))
}

// ListByUser returns the customer's transactions, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, db DBExecutor, userID uint64) ([]model.Transaction, error) {
	out := []model.Transaction{}
	err := db.SelectContext(ctx, &out,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id=? ORDER BY created_at DESC, id DESC", userID)
	return out, err
}

// ListByEvent returns an event's transactions, optionally for one status.
func (r *TransactionRepo) ListByEvent(ctx context.Context, db DBExecutor, eventID uint64, status model.TransactionStatus) ([]model.Transaction, error) {
	out := []model.Transaction{}
	q := "SELECT " + transactionColumns + " FROM transactions WHERE event_id=?"
	args := []any{eventID}
	if status != "" {
		q += " AND status=?"
		args = append(args, status)
	}
	err := db.SelectContext(ctx, &out, q+" ORDER BY created_at DESC, id DESC", args...)
	return out, err
}

// Overdue lists ids of transactions still in status whose deadline passed.
// WAITING_PAYMENT uses payment_deadline, WAITING_CONFIRMATION
// confirm_deadline.
func (r *TransactionRepo) Overdue(ctx context.Context, db DBExecutor, status model.TransactionStatus, now time.Time, limit int) ([]uint64, error) {
	col := "payment_deadline"
	if status == model.StatusWaitingConfirmation {
		col = "confirm_deadline"
	}
	out := []uint64{}
	err := db.SelectContext(ctx, &out,
		"SELECT id FROM transactions WHERE status=? AND "+col+" IS NOT NULL AND "+col+" <= ? ORDER BY "+col+" LIMIT ?",
		status, now, limit)
	return out, err
}
