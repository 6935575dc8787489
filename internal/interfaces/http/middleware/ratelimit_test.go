package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/infrastructure/persistence/redis"
)

type fakeLimiter struct {
	allowed   bool
	err       error
	remaining int
	keys      []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

func (f *fakeLimiter) Remaining(context.Context, string, int, time.Duration) (int, error) {
	return f.remaining, nil
}

func performRateLimited(limiter RateLimiter, cfg *config.RateLimitConfig) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/calls", RateLimit(cfg, limiter), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/calls", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitKeyMatchesLimiterKey(t *testing.T) {
	limiter := &fakeLimiter{allowed: true, remaining: 9}
	w := performRateLimited(limiter, &config.RateLimitConfig{Enabled: true, Limit: 10, Window: time.Minute})

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, limiter.keys, 1)
	// 中间件与限流器使用同一键格式；httptest 的 RemoteAddr 固定为 192.0.2.1:1234
	assert.Equal(t, redis.BuildRateLimitKey("192.0.2.1", "/v1/calls"), limiter.keys[0])

	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitRejectsWhenExhausted(t *testing.T) {
	limiter := &fakeLimiter{allowed: false, remaining: 0}
	w := performRateLimited(limiter, &config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Minute})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: fmt.Errorf("redis down")}
	w := performRateLimited(limiter, &config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Minute})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	w := performRateLimited(limiter, &config.RateLimitConfig{Enabled: false})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, limiter.keys)
}
