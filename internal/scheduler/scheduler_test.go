package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/service"
)

type countingSweeper struct{ n atomic.Int32 }

func (c *countingSweeper) Run(context.Context) service.SweepReport {
	c.n.Add(1)
	return service.SweepReport{Points: 1}
}

type blockingPoller struct{ stopped chan struct{} }

func (p *blockingPoller) Run(ctx context.Context) {
	<-ctx.Done()
	close(p.stopped)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewRejectsSubSecondInterval(t *testing.T) {
	_, err := New(&countingSweeper{}, nil, 500*time.Millisecond, discard())
	assert.Error(t, err)
}

func TestEverySpec(t *testing.T) {
	assert.Equal(t, "@every 1m30s", everySpec(90*time.Second))
}

func TestSweepEntryRunsSweeper(t *testing.T) {
	sw := &countingSweeper{}
	s, err := New(sw, nil, time.Minute, discard())
	require.NoError(t, err)

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	entries[0].Job.Run()
	assert.Equal(t, int32(1), sw.n.Load())
}

func TestRunStopsPollerOnCancel(t *testing.T) {
	p := &blockingPoller{stopped: make(chan struct{})}
	s, err := New(&countingSweeper{}, p, time.Hour, discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	select {
	case <-p.stopped:
	default:
		t.Fatal("poller still running")
	}
}
