// Package scheduler runs the background work of the ticketing service: the
// deferred job poller and the periodic expiry sweep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// Sweeper is the periodic expiry pass.
type Sweeper interface {
	Run(ctx context.Context) service.SweepReport
}

// Poller drains due deferred jobs until ctx is cancelled.
type Poller interface {
	Run(ctx context.Context)
}

// Scheduler owns the cron instance and the poller goroutine.
type Scheduler struct {
	cron    *cron.Cron
	poller  Poller
	sweeper Sweeper
	logger  *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New registers the sweep every interval.  poller may be nil when Redis is
// not configured; the sweep then carries all deadlines.
func New(sweeper Sweeper, poller Poller, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("sweep interval %s is below one second", interval)
	}
	logger = logger.With("component", "scheduler")
	s := &Scheduler{
		poller:  poller,
		sweeper: sweeper,
		logger:  logger,
		ctx:     context.Background(),
	}
	cl := cronLogger{logger}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(everySpec(interval), s.sweep); err != nil {
		return nil, fmt.Errorf("register sweep: %w", err)
	}
	return s, nil
}

func everySpec(d time.Duration) string { return "@every " + d.String() }

func (s *Scheduler) sweep() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	rep := s.sweeper.Run(ctx)
	s.logger.Debug("sweep done", "points", rep.Points, "coupons", rep.Coupons,
		"vouchers", rep.Vouchers, "transactions", rep.Transactions)
}

// Run starts the cron and the poller and blocks until ctx is done.  It
// waits for a running sweep before returning.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	var wg sync.WaitGroup
	if s.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.poller.Run(ctx)
		}()
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	wg.Wait()
	s.logger.Info("scheduler stopped")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
