package repository

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const pointColumns = `id, user_id, amount, used, balance, source, expires_at, expired, created_at`

// PointRepo stores point grants and the append-only point ledger.
type PointRepo struct{}

func NewPointRepo() *PointRepo { return &PointRepo{} }

// Grant inserts a fresh point row with balance = amount.
func (r *PointRepo) Grant(ctx context.Context, db DBExecutor, userID uint64, amount int64, src model.PointSource, expiresAt time.Time) (uint64, error) {
	return lastID(db.ExecContext(ctx,
		"INSERT INTO points (user_id, amount, used, balance, source, expires_at) VALUES (?,?,0,?,?,?)",
		userID, amount, amount, src, expiresAt))
}

// Record appends a ledger entry.
func (r *PointRepo) Record(ctx context.Context, db DBExecutor, h model.PointHistory) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO point_histories (user_id, point_id, delta, reason, transaction_id) VALUES (?,?,?,?,?)",
		h.UserID, h.PointID, h.Delta, h.Reason, h.TransactionID)
	return err
}

// Balance sums the spendable balance of a user at now.
func (r *PointRepo) Balance(ctx context.Context, db DBExecutor, userID uint64, now time.Time) (int64, error) {
	var n int64
	err := db.GetContext(ctx, &n,
		"SELECT COALESCE(SUM(balance),0) FROM points WHERE user_id=? AND expired=0 AND expires_at > ?", userID, now)
	return n, err
}

// LockSpendable locks the user's spendable rows, soonest expiry first.
func (r *PointRepo) LockSpendable(ctx context.Context, db DBExecutor, userID uint64, now time.Time) ([]model.Point, error) {
	out := []model.Point{}
	err := db.SelectContext(ctx, &out,
		"SELECT "+pointColumns+" FROM points WHERE user_id=? AND expired=0 AND expires_at > ? AND balance > 0 ORDER BY expires_at ASC, id ASC FOR UPDATE",
		userID, now)
	return out, err
}

// Deduct spends n from one row.  It never drives balance negative.
func (r *PointRepo) Deduct(ctx context.Context, db DBExecutor, pointID uint64, n int64) error {
	err := affected(db.ExecContext(ctx,
		"UPDATE points SET used = used + ?, balance = balance - ? WHERE id=? AND balance >= ?", n, n, pointID, n))
	if err == ErrConflict {
		return ErrInsufficientPoints
	}
	return err
}

// LockLatest locks the user's most recently created spendable row.
func (r *PointRepo) LockLatest(ctx context.Context, db DBExecutor, userID uint64, now time.Time) (*model.Point, error) {
	var p model.Point
	err := db.GetContext(ctx, &p,
		"SELECT "+pointColumns+" FROM points WHERE user_id=? AND expired=0 AND expires_at > ? ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE",
		userID, now)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Refund adds n back to a row.
func (r *PointRepo) Refund(ctx context.Context, db DBExecutor, pointID uint64, n int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE points SET balance = balance + ?, used = GREATEST(used - ?, 0) WHERE id=?", n, n, pointID)
	return err
}

func (r *PointRepo) ListByUser(ctx context.Context, db DBExecutor, userID uint64) ([]model.Point, error) {
	out := []model.Point{}
	err := db.SelectContext(ctx, &out, "SELECT "+pointColumns+" FROM points WHERE user_id=? ORDER BY expires_at ASC, id ASC", userID)
	return out, err
}

func (r *PointRepo) History(ctx context.Context, db DBExecutor, userID uint64, limit int) ([]model.PointHistory, error) {
	out := []model.PointHistory{}
	err := db.SelectContext(ctx, &out,
		"SELECT id, user_id, point_id, delta, reason, transaction_id, created_at FROM point_histories WHERE user_id=? ORDER BY id DESC LIMIT ?",
		userID, limit)
	return out, err
}

// ExpireDue writes an EXPIRED ledger entry for every row that crossed its
// expiry with a balance left, then flags those rows.  The balance column
// keeps its value; expired rows are excluded from Balance.
func (r *PointRepo) ExpireDue(ctx context.Context, db DBExecutor, now time.Time) (int64, error) {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO point_histories (user_id, point_id, delta, reason)
		 SELECT user_id, id, -balance, 'EXPIRED' FROM points WHERE expired=0 AND expires_at <= ? AND balance > 0`,
		now); err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, "UPDATE points SET expired=1 WHERE expired=0 AND expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
