package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a purchase.
type TransactionStatus string

const (
	StatusWaitingPayment      TransactionStatus = "WAITING_PAYMENT"
	StatusWaitingConfirmation TransactionStatus = "WAITING_CONFIRMATION"
	StatusDone                TransactionStatus = "DONE"
	StatusRejected            TransactionStatus = "REJECTED"
	StatusExpired             TransactionStatus = "EXPIRED"
	StatusCancelled           TransactionStatus = "CANCELLED"
)

// transitions lists the allowed moves out of each non-terminal status.
var transitions = map[TransactionStatus][]TransactionStatus{
	StatusWaitingPayment:      {StatusWaitingConfirmation, StatusExpired, StatusCancelled},
	StatusWaitingConfirmation: {StatusDone, StatusRejected, StatusCancelled},
}

// CanTransition reports whether a transaction may move from s to next.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s TransactionStatus) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// Restores reports whether entering s gives seats, points, coupon and
// voucher back.
func (s TransactionStatus) Restores() bool {
	return s == StatusRejected || s == StatusExpired || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusWaitingPayment, StatusWaitingConfirmation, StatusDone,
		StatusRejected, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Transaction is a customer's purchase for one event.
type Transaction struct {
	ID              uint64            `db:"id" json:"id"`
	InvoiceNo       string            `db:"invoice_no" json:"invoice_no"`
	UserID          uint64            `db:"user_id" json:"user_id"`
	EventID         uint64            `db:"event_id" json:"event_id"`
	Status          TransactionStatus `db:"status" json:"status"`
	Quantity        int               `db:"quantity" json:"quantity"`
	Subtotal        decimal.Decimal   `db:"subtotal" json:"subtotal"`
	DiscountAmount  decimal.Decimal   `db:"discount_amount" json:"discount_amount"`
	PointsUsed      int64             `db:"points_used" json:"points_used"`
	TotalAmount     decimal.Decimal   `db:"total_amount" json:"total_amount"`
	VoucherID       *uint64           `db:"voucher_id" json:"voucher_id"`
	CouponID        *uint64           `db:"coupon_id" json:"coupon_id"`
	PaymentProofURL *string           `db:"payment_proof_url" json:"payment_proof_url"`
	PaymentDeadline *time.Time        `db:"payment_deadline" json:"payment_deadline"`
	ConfirmDeadline *time.Time        `db:"confirm_deadline" json:"confirm_deadline"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`

	Details []TransactionDetail `db:"-" json:"details,omitempty"`
}

// TransactionDetail is one ticket type line of a transaction.
type TransactionDetail struct {
	ID            uint64          `db:"id" json:"id"`
	TransactionID uint64          `db:"transaction_id" json:"transaction_id"`
	TicketTypeID  uint64          `db:"ticket_type_id" json:"ticket_type_id"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
}
