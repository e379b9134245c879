package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(requests int, window time.Duration, clock *time.Time) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*clientWindow),
		requests: requests,
		window:   window,
		now:      func() time.Time { return *clock },
	}
	return rl
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	clock := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(2, time.Minute, &clock)

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

func TestRateLimiter_WindowResets(t *testing.T) {
	clock := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(1, time.Minute, &clock)

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	clock = clock.Add(61 * time.Second)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_SeparateClients(t *testing.T) {
	clock := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(1, time.Minute, &clock)

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	a := httptest.NewRequest(http.MethodGet, "/x", nil)
	a.Header.Set("X-Forwarded-For", "10.0.0.1")
	b := httptest.NewRequest(http.MethodGet, "/x", nil)
	b.Header.Set("X-Forwarded-For", "10.0.0.2, 192.168.0.1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, a)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, b)
	assert.Equal(t, http.StatusOK, rec.Code, "different forwarded IPs are separate windows")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, a)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
