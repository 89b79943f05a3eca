package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketType is a priced tier of an event with its own stock.
// AvailableQuantity never goes below zero and never exceeds Quantity.
type TicketType struct {
	ID                uint64          `db:"id" json:"id"`
	EventID           uint64          `db:"event_id" json:"event_id"`
	Name              string          `db:"name" json:"name"`
	Description       string          `db:"description" json:"description"`
	Price             decimal.Decimal `db:"price" json:"price"`
	Quantity          int             `db:"quantity" json:"quantity"`
	AvailableQuantity int             `db:"available_quantity" json:"available_quantity"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Sold returns how many tickets of this type are held by transactions.
func (t TicketType) Sold() int { return t.Quantity - t.AvailableQuantity }
