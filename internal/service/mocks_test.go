package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

type mockJobs struct{ mock.Mock }

func (m *mockJobs) Schedule(ctx context.Context, kind model.JobKind, txID uint64, at time.Time) error {
	return m.Called(ctx, kind, txID, at).Error(0)
}

func (m *mockJobs) Remove(ctx context.Context, txID uint64) error {
	return m.Called(ctx, txID).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, typ string, payload any) error {
	return m.Called(ctx, typ, payload).Error(0)
}

type mockImages struct{ mock.Mock }

func (m *mockImages) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, size, contentType)
	return args.String(0), args.Error(1)
}

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}
