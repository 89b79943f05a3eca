package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const voucherColumns = `id, event_id, code, discount_amount, quota, used_count, starts_at, ends_at, status, created_at`

// VoucherRepo stores organizer promo codes.
type VoucherRepo struct{}

func NewVoucherRepo() *VoucherRepo { return &VoucherRepo{} }

// NormalizeCode upper-cases and trims a voucher or coupon code.
func NormalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// Create inserts v.  A code already used for the same event is ErrConflict.
func (r *VoucherRepo) Create(ctx context.Context, db DBExecutor, v *model.Voucher) error {
	v.Code = NormalizeCode(v.Code)
	if v.Status == "" {
		v.Status = model.RewardActive
	}
	id, err := lastID(db.ExecContext(ctx,
		"INSERT INTO vouchers (event_id, code, discount_amount, quota, starts_at, ends_at, status) VALUES (?,?,?,?,?,?,?)",
		v.EventID, v.Code, v.DiscountAmount, v.Quota, v.StartsAt, v.EndsAt, v.Status))
	if err != nil {
		if isDuplicate(err, "") {
			return ErrConflict
		}
		return err
	}
	v.ID = id
	return nil
}

func (r *VoucherRepo) GetByID(ctx context.Context, db DBExecutor, id uint64) (*model.Voucher, error) {
	var v model.Voucher
	if err := db.GetContext(ctx, &v, "SELECT "+voucherColumns+" FROM vouchers WHERE id=?", id); err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// GetByCode looks a code up within one event.
func (r *VoucherRepo) GetByCode(ctx context.Context, db DBExecutor, eventID uint64, code string) (*model.Voucher, error) {
	var v model.Voucher
	err := db.GetContext(ctx, &v, "SELECT "+voucherColumns+" FROM vouchers WHERE event_id=? AND code=?",
		eventID, NormalizeCode(code))
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *VoucherRepo) ListByEvent(ctx context.Context, db DBExecutor, eventID uint64) ([]model.Voucher, error) {
	out := []model.Voucher{}
	err := db.SelectContext(ctx, &out, "SELECT "+voucherColumns+" FROM vouchers WHERE event_id=? ORDER BY created_at DESC", eventID)
	return out, err
}

// Delete removes a voucher that no transaction references.
func (r *VoucherRepo) Delete(ctx context.Context, db DBExecutor, id uint64) error {
	return affected(db.ExecContext(ctx, "DELETE FROM vouchers WHERE id=? AND used_count = 0", id))
}

// Consume takes one use of the voucher.  The status assignment comes first
// because MySQL evaluates SET left to right against updated values.
func (r *VoucherRepo) Consume(ctx context.Context, db DBExecutor, id uint64, now time.Time) error {
	const q = `UPDATE vouchers SET status = IF(used_count + 1 >= quota, 'USED', 'ACTIVE'), used_count = used_count + 1
		WHERE id=? AND status='ACTIVE' AND used_count < quota AND starts_at <= ? AND ends_at > ?`
	return affected(db.ExecContext(ctx, q, id, now, now))
}

// Release gives one use back.  An EXPIRED voucher stays expired.
func (r *VoucherRepo) Release(ctx context.Context, db DBExecutor, id uint64) error {
	const q = `UPDATE vouchers SET status = IF(status = 'EXPIRED', 'EXPIRED', 'ACTIVE'), used_count = used_count - 1
		WHERE id=? AND used_count > 0`
	_, err := db.ExecContext(ctx, q, id)
	return err
}

// ExpireDue marks vouchers past their window EXPIRED.
func (r *VoucherRepo) ExpireDue(ctx context.Context, db DBExecutor, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "UPDATE vouchers SET status='EXPIRED' WHERE status <> 'EXPIRED' AND ends_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
