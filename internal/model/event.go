package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is an organizer's listing.  Events sold through ticket types keep
// TotalSeats/AvailableSeats at zero; single-price events without ticket
// types sell against AvailableSeats at Price.
type Event struct {
	ID             uint64          `db:"id" json:"id"`                           // events.id
	OrganizerID    uint64          `db:"organizer_id" json:"organizer_id"`       // events.organizer_id
	Title          string          `db:"title" json:"title"`                     // events.title
	Description    string          `db:"description" json:"description"`         // events.description
	Category       string          `db:"category" json:"category"`               // events.category
	Location       string          `db:"location" json:"location"`               // events.location
	StartAt        time.Time       `db:"start_at" json:"start_at"`               // events.start_at
	EndAt          time.Time       `db:"end_at" json:"end_at"`                   // events.end_at
	ImageURL       *string         `db:"image_url" json:"image_url"`             // events.image_url (nullable)
	Price          decimal.Decimal `db:"price" json:"price"`                     // events.price (legacy single price)
	TotalSeats     int             `db:"total_seats" json:"total_seats"`         // events.total_seats (legacy)
	AvailableSeats int             `db:"available_seats" json:"available_seats"` // events.available_seats (legacy)
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// IsFree reports whether the legacy price is zero.
func (e Event) IsFree() bool { return e.Price.IsZero() }

// EventDetail is the public detail view: the event plus its ticket types.
type EventDetail struct {
	Event
	TicketTypes []TicketType `json:"ticket_types"`
}

// EventFilter carries the public listing query.
type EventFilter struct {
	Query       string
	Category    string
	Location    string
	Upcoming    bool
	OrganizerID uint64
	Page        int
	Limit       int
}

// Offset returns the row offset for the requested page.
func (f EventFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Page is a generic paginated list response.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
