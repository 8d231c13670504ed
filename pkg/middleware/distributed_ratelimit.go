package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/steeplehq/steeple/pkg/observability"
)

// DistributedRateLimiter implements rate limiting using Redis so limits
// are shared across instances. It backs the sign-in throttle: that
// limit has to hold no matter which replica serves the attempt.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed using a Redis-backed counter
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)

	_, err := pipe.Exec(ctx)
	if err != nil {
		// On Redis error, fail open (allow request) to prevent service disruption
		return true, fmt.Errorf("redis error: %w", err)
	}

	count := incr.Val()
	return count <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the number of remaining requests in the window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// TTL returns the time until the rate limit window resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	return rl.redis.TTL(ctx, redisKey).Result()
}

// Reset clears the rate limit for a key (for testing or admin purposes)
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	return rl.redis.Del(ctx, redisKey).Err()
}

// SignInThrottle applies the shared sign-in limit, keyed by client IP,
// to the credential endpoints only. Every other path passes through.
type SignInThrottle struct {
	limiter    *DistributedRateLimiter
	paths      map[string]struct{}
	logger     *observability.Logger
	throttles  prometheus.Counter
	failClosed bool
}

// NewSignInThrottle creates a throttle covering the given paths
// (typically the policy's sign-in path plus password reset).
func NewSignInThrottle(redisClient *redis.Client, paths []string, logger *observability.Logger) *SignInThrottle {
	covered := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		covered[p] = struct{}{}
	}
	return &SignInThrottle{
		limiter: NewDistributedRateLimiter(redisClient, SignInRateLimitConfig(), "throttle:signin"),
		paths:   covered,
		logger:  logger,
	}
}

// SetFailClosed controls behavior on Redis errors: fail open (default)
// keeps sign-in available during an outage, fail closed returns 503.
func (t *SignInThrottle) SetFailClosed(failClosed bool) {
	t.failClosed = failClosed
}

// WithThrottleCounter counts every rejected sign-in attempt.
func (t *SignInThrottle) WithThrottleCounter(counter prometheus.Counter) *SignInThrottle {
	t.throttles = counter
	return t
}

// Handler wraps an HTTP handler with the sign-in throttle
func (t *SignInThrottle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, covered := t.paths[r.URL.Path]; !covered || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := getClientIP(r)

		allowed, err := t.limiter.Allow(ctx, key)
		if err != nil {
			if t.logger != nil {
				t.logger.WithError(err).Warn("sign-in throttle unavailable")
			}
			if t.failClosed {
				http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			t.throttled(ctx, w, key)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (t *SignInThrottle) throttled(ctx context.Context, w http.ResponseWriter, key string) {
	if t.throttles != nil {
		t.throttles.Inc()
	}
	retryAfter := t.limiter.config.WindowDuration.Seconds()
	if ttl, err := t.limiter.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = ttl.Seconds()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"too many sign-in attempts","retry_after":` + fmt.Sprintf("%.0f", retryAfter) + `}`))
}

// HealthCheck verifies Redis connectivity for the throttle
func (t *SignInThrottle) HealthCheck(ctx context.Context) error {
	return t.limiter.redis.Ping(ctx).Err()
}
