package repository

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const couponColumns = `id, user_id, code, discount_percent, status, expires_at, used_at, created_at`

// CouponRepo stores single-use, user-owned percentage coupons.
type CouponRepo struct{}

func NewCouponRepo() *CouponRepo { return &CouponRepo{} }

// Create inserts c.  Code collisions are ErrConflict.
func (r *CouponRepo) Create(ctx context.Context, db DBExecutor, c *model.Coupon) error {
	if c.Status == "" {
		c.Status = model.RewardActive
	}
	id, err := lastID(db.ExecContext(ctx,
		"INSERT INTO coupons (user_id, code, discount_percent, status, expires_at) VALUES (?,?,?,?,?)",
		c.UserID, c.Code, c.DiscountPercent, c.Status, c.ExpiresAt))
	if err != nil {
		if isDuplicate(err, "") {
			return ErrConflict
		}
		return err
	}
	c.ID = id
	return nil
}

func (r *CouponRepo) GetByID(ctx context.Context, db DBExecutor, id uint64) (*model.Coupon, error) {
	var c model.Coupon
	if err := db.GetContext(ctx, &c, "SELECT "+couponColumns+" FROM coupons WHERE id=?", id); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListByUser returns the user's coupons, optionally filtered by status.
func (r *CouponRepo) ListByUser(ctx context.Context, db DBExecutor, userID uint64, status model.RewardStatus) ([]model.Coupon, error) {
	out := []model.Coupon{}
	q := "SELECT " + couponColumns + " FROM coupons WHERE user_id=?"
	args := []any{userID}
	if status != "" {
		q += " AND status=?"
		args = append(args, status)
	}
	err := db.SelectContext(ctx, &out, q+" ORDER BY expires_at ASC", args...)
	return out, err
}

// Use marks an active, unexpired coupon owned by userID as USED.  Anything
// else (already used, expired, someone else's) is ErrConflict.
func (r *CouponRepo) Use(ctx context.Context, db DBExecutor, id, userID uint64, now time.Time) error {
	return affected(db.ExecContext(ctx,
		"UPDATE coupons SET status='USED', used_at=? WHERE id=? AND user_id=? AND status='ACTIVE' AND expires_at > ?",
		now, id, userID, now))
}

// Reactivate returns a USED coupon to ACTIVE.
func (r *CouponRepo) Reactivate(ctx context.Context, db DBExecutor, id uint64) error {
	_, err := db.ExecContext(ctx, "UPDATE coupons SET status='ACTIVE', used_at=NULL WHERE id=? AND status='USED'", id)
	return err
}

// ExpireDue marks active coupons past expires_at EXPIRED.
func (r *CouponRepo) ExpireDue(ctx context.Context, db DBExecutor, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "UPDATE coupons SET status='EXPIRED' WHERE status='ACTIVE' AND expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
