package service

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// SweepReport counts rows changed by one sweep.
type SweepReport struct {
	Points       int64 `json:"points"`
	Coupons      int64 `json:"coupons"`
	Vouchers     int64 `json:"vouchers"`
	Transactions int   `json:"transactions"`
}

// Sweeper expires loyalty rewards and applies overdue transaction
// deadlines straight from the database.
type Sweeper struct {
	db     *sqlx.DB
	repos  *repository.Set
	txs    *TransactionService
	batch  int
	now    Clock
	logger *slog.Logger
}

func NewSweeper(db *sqlx.DB, repos *repository.Set, txs *TransactionService, batch int, logger *slog.Logger) *Sweeper {
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{db: db, repos: repos, txs: txs, batch: batch, now: utcNow, logger: logger.With("component", "sweeper")}
}

// Run performs one sweep.  Steps are independent; a failing step is logged
// and the others still run.
func (s *Sweeper) Run(ctx context.Context) SweepReport {
	var rep SweepReport
	now := s.now()

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := s.repos.Points.ExpireDue(ctx, tx, now)
		rep.Points = n
		return err
	})
	s.record("points", rep.Points, err)

	rep.Coupons, err = s.repos.Coupons.ExpireDue(ctx, s.db, now)
	s.record("coupons", rep.Coupons, err)

	rep.Vouchers, err = s.repos.Vouchers.ExpireDue(ctx, s.db, now)
	s.record("vouchers", rep.Vouchers, err)

	rep.Transactions, err = s.txs.SweepOverdue(ctx, s.batch)
	s.record("transactions", int64(rep.Transactions), err)
	return rep
}

func (s *Sweeper) record(target string, n int64, err error) {
	if err != nil {
		s.logger.Error("sweep step failed", "target", target, "error", err)
		return
	}
	if n > 0 {
		metrics.SweepRows.WithLabelValues(target).Add(float64(n))
		s.logger.Info("sweep step", "target", target, "rows", n)
	}
}
