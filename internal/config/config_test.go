package config

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIntegrationsDefaults(t *testing.T) {
	cfg, err := LoadIntegrations(context.Background())
	require.NoError(t, err)

	assert.False(t, cfg.Mail.Enabled)
	assert.Equal(t, "localhost:587", cfg.Mail.Addr())
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, int64(5<<20), cfg.Storage.MaxBytes)
	assert.False(t, cfg.PubNub.Enabled())
	assert.Equal(t, 2*time.Hour, cfg.Jobs.PaymentWindow)
	assert.Equal(t, 72*time.Hour, cfg.Jobs.ConfirmationWindow)
	assert.Equal(t, int64(10000), cfg.Loyalty.ReferralPoints)
	assert.Equal(t, 90*24*time.Hour, cfg.Loyalty.RewardValidity)
	assert.Equal(t, "10", cfg.Loyalty.CouponPercent().String())
}

func TestLoadIntegrationsFromEnv(t *testing.T) {
	t.Setenv("MAIL_ENABLED", "true")
	t.Setenv("MAIL_HOST", "smtp.example.com")
	t.Setenv("MAIL_PORT", "465")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("PUBNUB_PUBLISH_KEY", "pub")
	t.Setenv("PUBNUB_SUBSCRIBE_KEY", "sub")
	t.Setenv("JOBS_PAYMENT_WINDOW", "30m")
	t.Setenv("LOYALTY_REFERRAL_COUPON_PERCENT", "15")

	cfg, err := LoadIntegrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:465", cfg.Mail.Addr())
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.True(t, cfg.PubNub.Enabled())
	assert.Equal(t, 30*time.Minute, cfg.Jobs.PaymentWindow)
	assert.Equal(t, "15", cfg.Loyalty.CouponPercent().String())
}

func TestLoadIntegrationsRejectsBadDuration(t *testing.T) {
	t.Setenv("JOBS_SWEEP_INTERVAL", "soon")
	_, err := LoadIntegrations(context.Background())
	assert.Error(t, err)
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_AUTH_CAPACITY", "50")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.AuthCapacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)

	auth := cfg.WithCapacity(3, "rl:auth")
	assert.Equal(t, 3, auth.Capacity)
	assert.Equal(t, "rl:auth", auth.Prefix)
	assert.Equal(t, 1, cfg.Capacity)
}

func TestCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_PATHS", "/api/v1/events,/api/v1/tickets")
	cfg := LoadCacheConfig()
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.Equal(t, []string{"/api/v1/events", "/api/v1/tickets"}, cfg.Paths)
	assert.Equal(t, 30*time.Second, cfg.TTL)
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, Config{Env: "prod", LogLevel: "warn"})
	l.Info("hidden")
	l.Warn("shown", "k", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "event-ticketing", line["service"])

	assert.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
