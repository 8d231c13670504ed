package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/contextkeys"
	"github.com/steeplehq/steeple/pkg/roles"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("key"), "request %d should be allowed", i)
	}
	assert.False(t, limiter.Allow("key"))

	// A different key has its own bucket.
	assert.True(t, limiter.Allow("other"))
}

func TestRateLimiterRemaining(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         2,
	})

	assert.Equal(t, 7, limiter.Remaining("key"))
	limiter.Allow("key")
	assert.Equal(t, 6, limiter.Remaining("key"))
}

func TestRateLimitMiddlewareKeys(t *testing.T) {
	m := NewRateLimitMiddleware()

	t.Run("anonymous keyed by ip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		key, limiter := m.limiterFor(req)
		assert.Equal(t, "ip:203.0.113.9", key)
		assert.Same(t, m.anonymousLimiter, limiter)
	})

	t.Run("session keyed by user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		session := &auth.Session{UserID: "user-1", Role: roles.RoleMember}
		req = req.WithContext(contextkeys.WithSession(req.Context(), session))
		key, limiter := m.limiterFor(req)
		assert.Equal(t, "user:user-1", key)
		assert.Same(t, m.sessionLimiter, limiter)
	})
}

func TestRateLimitMiddlewareRejects(t *testing.T) {
	m := &RateLimitMiddleware{
		sessionLimiter: NewRateLimiter(SessionRateLimitConfig()),
		anonymousLimiter: NewRateLimiter(&RateLimitConfig{
			RequestsPerWindow: 2,
			WindowDuration:    time.Minute,
			BurstSize:         0,
		}),
	}

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		req.RemoteAddr = "198.51.100.7:49152"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func newThrottleRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter(t *testing.T) {
	_, client := newThrottleRedis(t)
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
	}, "test")

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)

	remaining, err := limiter.Remaining(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	require.NoError(t, limiter.Reset(ctx, "1.2.3.4"))
	remaining, err = limiter.Remaining(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestSignInThrottle(t *testing.T) {
	handler := func() http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}

	post := func(h http.Handler, path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("email=x"))
		req.RemoteAddr = ip + ":50000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("throttles repeated attempts from one ip", func(t *testing.T) {
		_, client := newThrottleRedis(t)
		throttle := NewSignInThrottle(client, []string{"/sign-in"}, nil)
		throttle.limiter.config = &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
		h := throttle.Handler(handler())

		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, post(h, "/sign-in", "203.0.113.1").Code)
		}

		rec := post(h, "/sign-in", "203.0.113.1")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "too many sign-in attempts")

		// Different IP keeps its own budget.
		assert.Equal(t, http.StatusOK, post(h, "/sign-in", "203.0.113.2").Code)
	})

	t.Run("counts throttled attempts", func(t *testing.T) {
		_, client := newThrottleRedis(t)
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_signin_throttled_total"})
		throttle := NewSignInThrottle(client, []string{"/sign-in"}, nil).
			WithThrottleCounter(counter)
		throttle.limiter.config = &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
		h := throttle.Handler(handler())

		assert.Equal(t, http.StatusOK, post(h, "/sign-in", "203.0.113.9").Code)
		assert.Equal(t, 0.0, testutil.ToFloat64(counter))

		assert.Equal(t, http.StatusTooManyRequests, post(h, "/sign-in", "203.0.113.9").Code)
		assert.Equal(t, 1.0, testutil.ToFloat64(counter))
	})

	t.Run("ignores uncovered paths and non-POST", func(t *testing.T) {
		_, client := newThrottleRedis(t)
		throttle := NewSignInThrottle(client, []string{"/sign-in"}, nil)
		throttle.limiter.config = &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
		h := throttle.Handler(handler())

		assert.Equal(t, http.StatusOK, post(h, "/sign-in", "203.0.113.3").Code)

		// Budget exhausted, but these are not throttled.
		assert.Equal(t, http.StatusOK, post(h, "/events", "203.0.113.3").Code)

		req := httptest.NewRequest(http.MethodGet, "/sign-in", nil)
		req.RemoteAddr = "203.0.113.3:50000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("fails open when redis is down", func(t *testing.T) {
		mr, client := newThrottleRedis(t)
		throttle := NewSignInThrottle(client, []string{"/sign-in"}, nil)
		h := throttle.Handler(handler())

		mr.Close()
		assert.Equal(t, http.StatusOK, post(h, "/sign-in", "203.0.113.4").Code)
	})

	t.Run("fails closed when configured", func(t *testing.T) {
		mr, client := newThrottleRedis(t)
		throttle := NewSignInThrottle(client, []string{"/sign-in"}, nil)
		throttle.SetFailClosed(true)
		h := throttle.Handler(handler())

		mr.Close()
		assert.Equal(t, http.StatusServiceUnavailable, post(h, "/sign-in", "203.0.113.5").Code)
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:    "forwarded-for first hop",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"},
			remote:  "10.0.0.1:1234",
			want:    "203.0.113.9",
		},
		{
			name:    "real-ip",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			remote:  "10.0.0.1:1234",
			want:    "203.0.113.7",
		},
		{
			name:   "remote addr fallback",
			remote: "198.51.100.2:4321",
			want:   "198.51.100.2:4321",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
