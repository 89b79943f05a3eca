package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func dueRange(limit int64) *redis.ZRangeBy {
	return &redis.ZRangeBy{Min: "-inf", Max: "1741597200000", Count: limit}
}

func TestScheduleMovesDeadline(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := NewDelayQueue(rdb)

	at := now.Add(2 * time.Hour)
	mock.ExpectZAdd("jobs:tx:expire", redis.Z{Score: float64(at.UnixMilli()), Member: "42"}).SetVal(1)
	require.NoError(t, q.Schedule(context.Background(), model.JobExpirePayment, 42, at))

	mock.ExpectZRem("jobs:tx:expire", "42").SetVal(1)
	mock.ExpectZRem("jobs:tx:cancel", "42").SetVal(0)
	require.NoError(t, q.Remove(context.Background(), 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisabledQueueIsNoop(t *testing.T) {
	q := NewDelayQueue(nil)
	assert.False(t, q.Enabled())
	assert.NoError(t, q.Schedule(context.Background(), model.JobAutoCancel, 1, now))
	assert.NoError(t, q.Remove(context.Background(), 1))
	ids, err := q.Due(context.Background(), model.JobAutoCancel, now, 10)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPollerRunsClaimedJobsOnly(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	var ran []uint64
	p := NewPoller(NewDelayQueue(rdb), func(_ context.Context, kind model.JobKind, id uint64) error {
		ran = append(ran, id)
		return nil
	}, time.Second, 10, discard())
	p.now = func() time.Time { return now }

	mock.ExpectZRangeByScore("jobs:tx:expire", dueRange(10)).SetVal([]string{"7", "junk"})
	mock.ExpectZRem("jobs:tx:expire", "7").SetVal(1)
	mock.ExpectZRangeByScore("jobs:tx:cancel", dueRange(10)).SetVal([]string{"8"})
	mock.ExpectZRem("jobs:tx:cancel", "8").SetVal(0) // claimed elsewhere

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{7}, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPollerReschedulesFailedJob(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	p := NewPoller(NewDelayQueue(rdb), func(context.Context, model.JobKind, uint64) error {
		return errors.New("db down")
	}, time.Second, 10, discard())
	p.now = func() time.Time { return now }

	mock.ExpectZRangeByScore("jobs:tx:expire", dueRange(10)).SetVal([]string{"9"})
	mock.ExpectZRem("jobs:tx:expire", "9").SetVal(1)
	retry := now.Add(30 * time.Second)
	mock.ExpectZAdd("jobs:tx:expire", redis.Z{Score: float64(retry.UnixMilli()), Member: "9"}).SetVal(1)
	mock.ExpectZRangeByScore("jobs:tx:cancel", dueRange(10)).SetVal(nil)

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingHandler struct {
	mu   sync.Mutex
	envs []Envelope
}

func (h *recordingHandler) Handle(_ context.Context, env Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.envs = append(h.envs, env)
	return nil
}

func TestDirectPublisherDeliversEnvelope(t *testing.T) {
	h := &recordingHandler{}
	p := NewDirectPublisher(h, discard())

	err := p.Publish(context.Background(), TypeTransactionStatus, TransactionStatusEvent{
		TransactionID: 5,
		InvoiceNo:     "INV-5",
		Status:        string(model.StatusDone),
		TotalAmount:   decimal.RequireFromString("125000.50"),
	})
	require.NoError(t, err)
	p.Wait()

	require.Len(t, h.envs, 1)
	assert.Equal(t, TypeTransactionStatus, h.envs[0].Type)
	var ev TransactionStatusEvent
	require.NoError(t, h.envs[0].Decode(&ev))
	assert.Equal(t, uint64(5), ev.TransactionID)
	assert.True(t, ev.TotalAmount.Equal(decimal.RequireFromString("125000.50")))
}
