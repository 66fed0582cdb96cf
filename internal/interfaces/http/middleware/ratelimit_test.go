package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	allowed   bool
	remaining int
	err       error
	lastKey   string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, int, error) {
	s.lastKey = key
	return s.allowed, s.remaining, s.err
}

func newLimitedRouter(cfg RateLimitConfig, limiter RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(cfg, limiter))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestRateLimit(t *testing.T) {
	cfg := RateLimitConfig{Enabled: true, RequestsPerSecond: 5, KeyPrefix: "rl"}

	t.Run("放行请求并写入配额头", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true, remaining: 3}
		r := newLimitedRouter(cfg, limiter)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Remaining"))
		assert.Contains(t, limiter.lastKey, "rl:")
		assert.Contains(t, limiter.lastKey, ":/ping")
	})

	t.Run("超限返回429", func(t *testing.T) {
		limiter := &stubLimiter{allowed: false, remaining: 0}
		r := newLimitedRouter(cfg, limiter)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "rate limit exceeded")
	})

	t.Run("限流器故障时放行", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis down")}
		r := newLimitedRouter(cfg, limiter)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("未启用时为空中间件", func(t *testing.T) {
		limiter := &stubLimiter{allowed: false}
		r := newLimitedRouter(RateLimitConfig{Enabled: false}, limiter)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, limiter.lastKey)
	})
}
