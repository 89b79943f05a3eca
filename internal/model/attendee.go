package model

import "time"

// Attendee is one admission issued for a DONE transaction.
type Attendee struct {
	ID            uint64     `db:"id" json:"id"`
	TransactionID uint64     `db:"transaction_id" json:"transaction_id"`
	EventID       uint64     `db:"event_id" json:"event_id"`
	UserID        uint64     `db:"user_id" json:"user_id"`
	TicketTypeID  *uint64    `db:"ticket_type_id" json:"ticket_type_id"`
	TicketCode    string     `db:"ticket_code" json:"ticket_code"`
	CheckedInAt   *time.Time `db:"checked_in_at" json:"checked_in_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`

	// Joined columns for organizer listings.
	Name  string `db:"name" json:"name,omitempty"`
	Email string `db:"email" json:"email,omitempty"`
}
