package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(discard())
	return e
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	e := newEcho()
	g := e.Group("", JWTAuth("secret"), RequireRole(model.RoleOrganizer))
	g.GET("/me", func(c echo.Context) error {
		id, ok := UserID(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
	})

	rec := do(e, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, do(e, req).Code)

	customer, err := utils.NewAccessToken("secret", 5, "CUSTOMER", 5)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+customer.Token)
	assert.Equal(t, http.StatusForbidden, do(e, req).Code)

	organizer, err := utils.NewAccessToken("secret", 7, "ORGANIZER", 5)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+organizer.Token)
	rec = do(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"role":"ORGANIZER"}`, rec.Body.String())

	wrongKey, err := utils.NewAccessToken("other", 7, "ORGANIZER", 5)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+wrongKey.Token)
	assert.Equal(t, http.StatusUnauthorized, do(e, req).Code)
}

func TestErrorHandlerRendersAppErrors(t *testing.T) {
	e := newEcho()
	e.GET("/bad", func(echo.Context) error {
		return apperr.Validation(map[string]string{"email": "cannot be blank"})
	})
	e.GET("/boom", func(echo.Context) error { return errors.New("db down") })

	rec := do(e, httptest.NewRequest(http.MethodGet, "/bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"cannot be blank"`)

	rec = do(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "db down")

	rec = do(e, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{"GET": true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "cache",
		LocalSize:   16,
		Paths:       []string{"/api/v1/events"},
	}
}

func TestResponseCacheWithLocalStore(t *testing.T) {
	cfg := cacheConfig()
	store := NewCacheStore(cfg, nil)
	require.NotNil(t, store)
	assert.Equal(t, "lru", store.Name())

	calls := 0
	e := newEcho()
	e.Use(NewResponseCache(cfg, store, discard()))
	e.GET("/api/v1/events", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	})
	e.GET("/api/v1/me", func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusNoContent)
	})

	first := do(e, httptest.NewRequest(http.MethodGet, "/api/v1/events?page=1", nil))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(e, httptest.NewRequest(http.MethodGet, "/api/v1/events?page=1", nil))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	do(e, httptest.NewRequest(http.MethodGet, "/api/v1/events?page=2", nil))
	assert.Equal(t, 2, calls)

	authed := httptest.NewRequest(http.MethodGet, "/api/v1/events?page=1", nil)
	authed.Header.Set("Authorization", "Bearer x")
	rec := do(e, authed)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)

	rec = do(e, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestResponseCacheRedisHit(t *testing.T) {
	cfg := cacheConfig()
	rdb, mock := redismock.NewClientMock()
	store := NewCacheStore(cfg, rdb)
	assert.Equal(t, "redis", store.Name())

	e := newEcho()
	e.Use(NewResponseCache(cfg, store, discard()))
	e.GET("/api/v1/events", func(c echo.Context) error {
		t.Fatal("handler must not run on a hit")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?q=jazz", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/events")
	key := cacheKeyFrom(cfg, c)

	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"items":[]}`))
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(payload))

	rec := do(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, `{"items":[]}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewCacheStoreDisabled(t *testing.T) {
	cfg := cacheConfig()
	cfg.Enabled = false
	assert.Nil(t, NewCacheStore(cfg, nil))
	cfg.Enabled, cfg.LocalSize = true, 0
	assert.Nil(t, NewCacheStore(cfg, nil))
}

func TestTokenBucketBlocks(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Second,
		TTL: 10 * time.Minute, KeyStrategy: "ip", Prefix: "rl",
	}
	rdb, mock := redismock.NewClientMock()
	now := time.UnixMilli(1_700_000_000_000)

	e := newEcho()
	e.Use(tokenBucket(cfg, rdb, discard(), func() time.Time { return now }))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	key := "rl:ip:192.0.2.1"
	args := []interface{}{now.UnixMilli(), 2, 1, int64(1000), int64(600)}
	mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(1), int64(1), int64(0)})
	mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(0), int64(0), int64(400)})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	rec := do(e, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	rec = do(e, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucketFailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, KeyStrategy: "ip", Prefix: "rl"}
	rdb, mock := redismock.NewClientMock()
	now := time.UnixMilli(1_700_000_000_000)
	mock.ExpectEvalSha(limiterScript.Hash(), []string{"rl:ip:192.0.2.1"}, now.UnixMilli(), 1, 1, int64(1000), int64(60)).
		SetErr(errors.New("connection refused"))

	e := newEcho()
	e.Use(tokenBucket(cfg, rdb, discard(), func() time.Time { return now }))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	assert.Equal(t, http.StatusNoContent, do(e, req).Code)
}
