package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardStatus is shared by coupons and vouchers.
type RewardStatus string

const (
	RewardActive  RewardStatus = "ACTIVE"
	RewardUsed    RewardStatus = "USED"
	RewardExpired RewardStatus = "EXPIRED"
)

// PointSource says where a point row came from.
type PointSource string

const (
	SourceReferral       PointSource = "REFERRAL"
	SourceRefund         PointSource = "REFUND"
	SourcePurchaseReward PointSource = "PURCHASE_REWARD"
)

// Ledger reasons beyond the point sources.
const (
	ReasonPurchase = "PURCHASE"
	ReasonExpired  = "EXPIRED"
)

// Point is one grant of loyalty points.  Balance = Amount - Used and is
// consumed oldest-expiry first.
type Point struct {
	ID        uint64      `db:"id" json:"id"`
	UserID    uint64      `db:"user_id" json:"user_id"`
	Amount    int64       `db:"amount" json:"amount"`
	Used      int64       `db:"used" json:"used"`
	Balance   int64       `db:"balance" json:"balance"`
	Source    PointSource `db:"source" json:"source"`
	ExpiresAt time.Time   `db:"expires_at" json:"expires_at"`
	Expired   bool        `db:"expired" json:"expired"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// PointHistory is an append-only ledger entry.  Delta is positive for
// grants and refunds, negative for spending and expiry.
type PointHistory struct {
	ID            uint64    `db:"id" json:"id"`
	UserID        uint64    `db:"user_id" json:"user_id"`
	PointID       *uint64   `db:"point_id" json:"point_id"`
	Delta         int64     `db:"delta" json:"delta"`
	Reason        string    `db:"reason" json:"reason"`
	TransactionID *uint64   `db:"transaction_id" json:"transaction_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Coupon is a single-use percentage discount owned by one user.
type Coupon struct {
	ID              uint64          `db:"id" json:"id"`
	UserID          uint64          `db:"user_id" json:"user_id"`
	Code            string          `db:"code" json:"code"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discount_percent"`
	Status          RewardStatus    `db:"status" json:"status"`
	ExpiresAt       time.Time       `db:"expires_at" json:"expires_at"`
	UsedAt          *time.Time      `db:"used_at" json:"used_at"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Usable reports whether the coupon can be applied at now.
func (c Coupon) Usable(now time.Time) bool {
	return c.Status == RewardActive && now.Before(c.ExpiresAt)
}

// Voucher is an organizer-issued fixed discount for one event.
type Voucher struct {
	ID             uint64          `db:"id" json:"id"`
	EventID        uint64          `db:"event_id" json:"event_id"`
	Code           string          `db:"code" json:"code"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Quota          int             `db:"quota" json:"quota"`
	UsedCount      int             `db:"used_count" json:"used_count"`
	StartsAt       time.Time       `db:"starts_at" json:"starts_at"`
	EndsAt         time.Time       `db:"ends_at" json:"ends_at"`
	Status         RewardStatus    `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Usable reports whether the voucher is inside its window with quota left.
func (v Voucher) Usable(now time.Time) bool {
	return v.Status == RewardActive && v.UsedCount < v.Quota &&
		!now.Before(v.StartsAt) && now.Before(v.EndsAt)
}
