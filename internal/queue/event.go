// Package queue carries domain events between the API and the notification
// worker, and holds the Redis backed delay queue for transaction deadlines.
package queue

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Event types used as the envelope Type and AMQP message type.
const (
	TypeTransactionStatus = "transaction.status"
	TypeUserRegistered    = "user.registered"
)

// Envelope wraps every payload published to the broker.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload under the given type.
func NewEnvelope(typ string, payload any, now time.Time) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, OccurredAt: now.UTC(), Payload: b}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error { return json.Unmarshal(e.Payload, v) }

// TransactionStatusEvent is published after every committed status change.
// It carries enough for the worker to email and push without querying the
// primary database.
type TransactionStatusEvent struct {
	TransactionID uint64          `json:"transaction_id"`
	InvoiceNo     string          `json:"invoice_no"`
	UserID        uint64          `json:"user_id"`
	UserName      string          `json:"user_name"`
	UserEmail     string          `json:"user_email"`
	EventID       uint64          `json:"event_id"`
	EventTitle    string          `json:"event_title"`
	EventStartAt  time.Time       `json:"event_start_at"`
	Status        string          `json:"status"`
	Quantity      int             `json:"quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PointsUsed    int64           `json:"points_used"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
	TicketCodes   []string        `json:"ticket_codes,omitempty"`
}

// UserRegisteredEvent is published once an account is committed.
type UserRegisteredEvent struct {
	UserID         uint64 `json:"user_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	ReferralCode   string `json:"referral_code"`
	ReferralReward bool   `json:"referral_reward"`
	ReferrerID     uint64 `json:"referrer_id,omitempty"`
	ReferrerPoints int64  `json:"referrer_points,omitempty"`
}
