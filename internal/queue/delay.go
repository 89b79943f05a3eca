package queue

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// DelayQueue keeps deferred transaction jobs in one Redis sorted set per
// kind.  The member is the transaction id and the score the due time in
// unix milliseconds, so scheduling the same transaction again moves its
// deadline instead of adding a duplicate.  A nil client turns every method
// into a no-op; the periodic sweep then finds overdue rows in the database.
type DelayQueue struct {
	rdb    *redis.Client
	prefix string
}

func NewDelayQueue(rdb *redis.Client) *DelayQueue {
	return &DelayQueue{rdb: rdb, prefix: "jobs:tx:"}
}

// Enabled reports whether a Redis client is configured.
func (q *DelayQueue) Enabled() bool { return q != nil && q.rdb != nil }

func (q *DelayQueue) key(kind model.JobKind) string { return q.prefix + string(kind) }

func member(txID uint64) string { return strconv.FormatUint(txID, 10) }

// Schedule registers (or moves) the job for txID to fire at at.
func (q *DelayQueue) Schedule(ctx context.Context, kind model.JobKind, txID uint64, at time.Time) error {
	if !q.Enabled() {
		return nil
	}
	err := q.rdb.ZAdd(ctx, q.key(kind), redis.Z{Score: float64(at.UnixMilli()), Member: member(txID)}).Err()
	if err == nil {
		metrics.JobsScheduled.WithLabelValues(string(kind)).Inc()
	}
	return err
}

// Remove deletes any pending job of any kind for txID.
func (q *DelayQueue) Remove(ctx context.Context, txID uint64) error {
	if !q.Enabled() {
		return nil
	}
	for _, kind := range model.JobKinds {
		n, err := q.rdb.ZRem(ctx, q.key(kind), member(txID)).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			metrics.JobsRemoved.WithLabelValues(string(kind)).Inc()
		}
	}
	return nil
}

// Due returns up to limit transaction ids whose job is due at now.
func (q *DelayQueue) Due(ctx context.Context, kind model.JobKind, now time.Time, limit int64) ([]uint64, error) {
	if !q.Enabled() {
		return nil, nil
	}
	members, err := q.rdb.ZRangeByScore(ctx, q.key(kind), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Claim removes one due member.  Only the worker whose ZREM deletes the
// member runs the job.
func (q *DelayQueue) Claim(ctx context.Context, kind model.JobKind, txID uint64) (bool, error) {
	if !q.Enabled() {
		return false, nil
	}
	n, err := q.rdb.ZRem(ctx, q.key(kind), member(txID)).Result()
	return n == 1, err
}

// JobFunc runs one claimed job.
type JobFunc func(ctx context.Context, kind model.JobKind, txID uint64) error

// Poller drains due jobs on an interval.
type Poller struct {
	queue      *DelayQueue
	run        JobFunc
	interval   time.Duration
	batch      int64
	retryDelay time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewPoller(q *DelayQueue, run JobFunc, interval time.Duration, batch int64, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &Poller{
		queue:      q,
		run:        run,
		interval:   interval,
		batch:      batch,
		retryDelay: 30 * time.Second,
		now:        time.Now,
		logger:     logger.With("component", "job-poller"),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if !p.queue.Enabled() {
		p.logger.Info("redis disabled, job poller not started")
		return
	}
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error("poll failed", "error", err)
			}
		}
	}
}

// RunOnce processes every kind once and returns how many jobs ran.  A job
// that fails is put back with a short delay.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	ran := 0
	for _, kind := range model.JobKinds {
		ids, err := p.queue.Due(ctx, kind, p.now(), p.batch)
		if err != nil {
			return ran, err
		}
		for _, id := range ids {
			ok, err := p.queue.Claim(ctx, kind, id)
			if err != nil {
				return ran, err
			}
			if !ok {
				continue // another worker got it
			}
			metrics.JobsFired.WithLabelValues(string(kind)).Inc()
			if err := p.run(ctx, kind, id); err != nil {
				p.logger.Error("job failed", "kind", kind, "transaction_id", id, "error", err)
				if err := p.queue.Schedule(ctx, kind, id, p.now().Add(p.retryDelay)); err != nil {
					p.logger.Error("reschedule failed", "kind", kind, "transaction_id", id, "error", err)
				}
				continue
			}
			ran++
		}
	}
	return ran, nil
}
