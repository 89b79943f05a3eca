package repository

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/shopspring/decimal"
)

// DashboardRepo aggregates an organizer's sales for the dashboard.
type DashboardRepo struct{}

func NewDashboardRepo() *DashboardRepo { return &DashboardRepo{} }

// bucketFormats maps a chart period to a MySQL DATE_FORMAT pattern.
var bucketFormats = map[string]string{
	"day":   "%Y-%m-%d",
	"month": "%Y-%m",
	"year":  "%Y",
}

// BucketFormat returns the DATE_FORMAT pattern for period and whether the
// period is known.
func BucketFormat(period string) (string, bool) {
	f, ok := bucketFormats[period]
	return f, ok
}

// Summary computes the overview cards.
func (r *DashboardRepo) Summary(ctx context.Context, db DBExecutor, organizerID uint64) (*model.DashboardSummary, error) {
	s := &model.DashboardSummary{Transactions: map[model.TransactionStatus]int{}}
	if err := db.GetContext(ctx, &s.Events, "SELECT COUNT(*) FROM events WHERE organizer_id=?", organizerID); err != nil {
		return nil, err
	}

	var sales struct {
		Revenue decimal.Decimal `db:"revenue"`
		Tickets int             `db:"tickets"`
	}
	const salesQ = `SELECT COALESCE(SUM(t.total_amount),0) AS revenue, COALESCE(SUM(t.quantity),0) AS tickets
		FROM transactions t JOIN events e ON e.id = t.event_id
		WHERE e.organizer_id=? AND t.status='DONE'`
	if err := db.GetContext(ctx, &sales, salesQ, organizerID); err != nil {
		return nil, err
	}
	s.Revenue, s.TicketsSold = sales.Revenue, sales.Tickets

	if err := db.GetContext(ctx, &s.Attendees,
		"SELECT COUNT(*) FROM attendees a JOIN events e ON e.id = a.event_id WHERE e.organizer_id=?", organizerID); err != nil {
		return nil, err
	}

	var byStatus []struct {
		Status model.TransactionStatus `db:"status"`
		N      int                     `db:"n"`
	}
	const statusQ = `SELECT t.status AS status, COUNT(*) AS n
		FROM transactions t JOIN events e ON e.id = t.event_id
		WHERE e.organizer_id=? GROUP BY t.status`
	if err := db.SelectContext(ctx, &byStatus, statusQ, organizerID); err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		s.Transactions[row.Status] = row.N
	}
	return s, nil
}

// Revenue returns DONE revenue grouped by day, month or year between from
// (inclusive) and to (exclusive).  A DONE row is never updated again, so
// updated_at is the moment the sale completed.
func (r *DashboardRepo) Revenue(ctx context.Context, db DBExecutor, organizerID uint64, format string, from, to time.Time) ([]model.RevenuePoint, error) {
	out := []model.RevenuePoint{}
	const q = `SELECT DATE_FORMAT(t.updated_at, ?) AS bucket,
			COALESCE(SUM(t.total_amount),0) AS revenue,
			COALESCE(SUM(t.quantity),0) AS tickets
		FROM transactions t JOIN events e ON e.id = t.event_id
		WHERE e.organizer_id=? AND t.status='DONE' AND t.updated_at >= ? AND t.updated_at < ?
		GROUP BY bucket ORDER BY bucket`
	err := db.SelectContext(ctx, &out, q, format, organizerID, from, to)
	return out, err
}
