package model

import "github.com/shopspring/decimal"

// DashboardSummary feeds the organizer's overview cards.
type DashboardSummary struct {
	Events       int                       `json:"events"`
	TicketsSold  int                       `json:"tickets_sold"`
	Revenue      decimal.Decimal           `json:"revenue"`
	Attendees    int                       `json:"attendees"`
	Transactions map[TransactionStatus]int `json:"transactions"`
}

// RevenuePoint is one bucket of the revenue chart.
type RevenuePoint struct {
	Bucket  string          `db:"bucket" json:"bucket"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
	Tickets int             `db:"tickets" json:"tickets"`
}
