package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/turnos-booking/internal/config"
)

// ResponseCache caches successful GET responses in Redis.  Keys embed a
// generation counter; bumping the generation after a booking mutation makes
// every cached availability list stale at once.  Entries also expire at the
// next minute boundary, since availability drops times as they pass.  A nil
// Redis client or a disabled config turns every method into a no-op.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	now func() time.Time
}

// NewResponseCache returns a cache backed by rdb.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
	return &ResponseCache{cfg: cfg, rdb: rdb, now: time.Now}
}

func (rc *ResponseCache) enabled() bool {
	return rc != nil && rc.cfg.Enabled && rc.rdb != nil
}

func (rc *ResponseCache) genKey() string { return rc.cfg.Prefix + ":gen" }

// Bust invalidates every cached response.
func (rc *ResponseCache) Bust(ctx context.Context) error {
	if !rc.enabled() {
		return nil
	}
	return rc.rdb.Incr(ctx, rc.genKey()).Err()
}

// Cache serves GET requests from Redis and stores 200 responses.
func (rc *ResponseCache) Cache() echo.MiddlewareFunc {
	if !rc.enabled() {
		return passThrough
	}
	maxBody := int64(rc.cfg.MaxBodyBytes)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			gen, err := rc.rdb.Get(ctx, rc.genKey()).Int64()
			if err != nil && err != redis.Nil {
				return next(c)
			}
			key := cacheKey(rc.cfg.Prefix, gen, c)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, _ = c.Response().Write(body)
					return nil
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			hdr.Del(echo.HeaderXRequestID)
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rc.rdb.SetEx(context.Background(), key, payload, entryTTL(rc.now(), rc.cfg.TTL)).Err(); err != nil {
				log.Printf("cache: store %s failed: %v", key, err)
			}
			return nil
		}
	}
}

// Invalidate bumps the generation after a handler answers with 2xx.
func (rc *ResponseCache) Invalidate() echo.MiddlewareFunc {
	if !rc.enabled() {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if s := c.Response().Status; err == nil && s >= 200 && s < 300 {
				if berr := rc.Bust(context.Background()); berr != nil {
					log.Printf("cache: invalidate after %s failed: %v", c.Path(), berr)
				}
			}
			return err
		}
	}
}

// captureWriter copies the response body, up to limit bytes, while
// forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
			cw.truncated = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// entryTTL caps ttl at the time left until the minute after now.
func entryTTL(now time.Time, ttl time.Duration) time.Duration {
	left := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	if left < time.Millisecond {
		left = time.Millisecond
	}
	if left < ttl {
		return left
	}
	return ttl
}

func cacheKey(prefix string, gen int64, c echo.Context) string {
	sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s:%d:%x", prefix, gen, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen > len(bs)-8 {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
