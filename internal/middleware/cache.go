package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/metrics"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }
func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size < cw.limit {
		remain := cw.limit - cw.size
		if cw.limit <= 0 {
			cw.buf.Write(b)
		} else if remain > 0 {
			if int64(len(b)) <= remain {
				cw.buf.Write(b)
			} else {
				cw.buf.Write(b[:remain])
			}
		}
		cw.size += int64(len(b))
	}
	return cw.ResponseWriter.Write(b)
}

// Build a stable cache key honoring prefix/strategy.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	method := r.Method
	route := c.Path()
	query := r.URL.RawQuery

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		parts = append(parts, "route", route)
	case "method_route":
		parts = append(parts, "method", method, "route", route)
	case "method_route_query":
		parts = append(parts, "method", method, "route", route, "q", query)
	default: // "route_query"
		parts = append(parts, "route", route, "q", query)
	}

	tail := strings.Join(parts[1:], ":")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", parts[0], sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	total := 4 + 4 + len(hdrJSON) + len(body)
	out := make([]byte, total)
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if 8+hlen > len(bs) || hlen < 0 {
		return 0, nil, nil, false
	}
	var hdr http.Header
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
			return 0, nil, nil, false
		}
	} else {
		hdr = make(http.Header)
	}
	body = bs[8+hlen:]
	return status, hdr, body, true
}

// CacheStore keeps encoded responses.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Name() string
}

type redisStore struct{ rdb *redis.Client }

func (s redisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	bs, err := s.rdb.Get(ctx, key).Bytes()
	return bs, err == nil
}

func (s redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	_ = s.rdb.SetEx(ctx, key, val, ttl).Err()
}

func (redisStore) Name() string { return "redis" }

// lruStore is the in-process fallback.  Entries share the TTL given at
// construction.
type lruStore struct {
	lru *expirable.LRU[string, []byte]
}

func newLRUStore(size int, ttl time.Duration) lruStore {
	return lruStore{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s lruStore) Get(_ context.Context, key string) ([]byte, bool) { return s.lru.Get(key) }

func (s lruStore) Set(_ context.Context, key string, val []byte, _ time.Duration) {
	s.lru.Add(key, val)
}

func (lruStore) Name() string { return "lru" }

// NewCacheStore picks Redis when available, else a bounded in-process LRU.
// It returns nil when caching is disabled or neither backend is usable.
func NewCacheStore(cfg config.CacheConfig, rdb *redis.Client) CacheStore {
	switch {
	case !cfg.Enabled:
		return nil
	case rdb != nil:
		return redisStore{rdb: rdb}
	case cfg.LocalSize > 0:
		return newLRUStore(cfg.LocalSize, cacheTTL(cfg))
	}
	return nil
}

func cacheTTL(cfg config.CacheConfig) time.Duration {
	if cfg.TTL <= 0 {
		return 5 * time.Minute
	}
	return cfg.TTL
}

// cacheable reports whether the request may be served from the shared
// cache: a configured method on a configured path, and no credentials.
func cacheable(cfg config.CacheConfig, r *http.Request) bool {
	if !cfg.Methods[strings.ToUpper(r.Method)] || r.Header.Get("Authorization") != "" {
		return false
	}
	if len(cfg.Paths) == 0 {
		return true
	}
	for _, p := range cfg.Paths {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}

// NewResponseCache stores status, headers and body of successful public
// responses so clients see identical output on a hit.
func NewResponseCache(cfg config.CacheConfig, store CacheStore, logger *slog.Logger) echo.MiddlewareFunc {
	if store == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cacheTTL(cfg)
	maxBody := int64(cfg.MaxBodyBytes)
	logger.Info("response cache enabled", "backend", store.Name(), "ttl", ttl)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cacheable(cfg, c.Request()) {
				return next(c)
			}

			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if bs, ok := store.Get(ctx, key); ok {
				if status, hdr, body, ok := decodePayload(bs); ok {
					metrics.CacheLookups.WithLabelValues(store.Name(), "hit").Inc()
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					if len(body) > 0 {
						_, _ = c.Response().Write(body)
					}
					return nil
				}
			}
			metrics.CacheLookups.WithLabelValues(store.Name(), "miss").Inc()

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			// truncated bodies are not stored
			if cw.status == http.StatusOK && (maxBody <= 0 || cw.size <= maxBody) {
				hdr := make(http.Header, len(c.Response().Header()))
				for k, vals := range c.Response().Header() {
					if strings.EqualFold(k, "X-Cache") {
						continue
					}
					vv := make([]string, len(vals))
					copy(vv, vals)
					hdr[k] = vv
				}
				if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
					store.Set(context.Background(), key, payload, ttl)
				}
			}
			return nil
		}
	}
}
