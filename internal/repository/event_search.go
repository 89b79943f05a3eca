package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// Search returns one page of events matching f plus the total match count.
func (r *EventRepo) Search(ctx context.Context, db DBExecutor, f model.EventFilter, now time.Time) ([]model.Event, int, error) {
	where := []string{}
	args := []any{}

	if f.Upcoming {
		where = append(where, "start_at >= ?")
		args = append(args, now)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like)
	}
	if f.Category != "" {
		where = append(where, "LOWER(category) = ?")
		args = append(args, strings.ToLower(f.Category))
	}
	if f.Location != "" {
		where = append(where, "LOWER(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Location)+"%")
	}
	if f.OrganizerID != 0 {
		where = append(where, "organizer_id = ?")
		args = append(args, f.OrganizerID)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM events WHERE "+cond, args...); err != nil {
		return nil, 0, err
	}

	out := make([]model.Event, 0, f.Limit)
	if total == 0 {
		return out, 0, nil
	}
	dataSQL := "SELECT " + eventColumns + " FROM events WHERE " + cond + " ORDER BY start_at ASC, id ASC LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), f.Limit, f.Offset())
	if err := db.SelectContext(ctx, &out, dataSQL, argsData...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
