// Package ratelimit provides Redis-based fixed-window rate limiting for the
// HTTP endpoints.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a rate limit is exceeded
var ErrRateLimited = errors.New("rate limit exceeded")

// Limits configures one fixed window.
type Limits struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits allows 60 requests per client per minute.
func DefaultLimits() Limits {
	return Limits{Requests: 60, Window: time.Minute}
}

// Limiter counts requests per key in Redis. A nil Limiter, or one without a
// Redis client, allows everything.
type Limiter struct {
	redis  *redis.Client
	limits Limits
	logger *slog.Logger
}

// NewLimiter creates a limiter over client.
func NewLimiter(client *redis.Client, limits Limits, logger *slog.Logger) *Limiter {
	if limits.Requests <= 0 || limits.Window <= 0 {
		limits = DefaultLimits()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Limiter{redis: client, limits: limits, logger: logger}
}

// Allow counts one request for key and returns ErrRateLimited once the
// window's budget is spent. Redis errors let the request through.
func (l *Limiter) Allow(ctx context.Context, scope, key string) error {
	if !l.enabled() {
		return nil
	}

	redisKey := fmt.Sprintf("ratelimit:%s:%s", scope, key)
	count, err := l.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request", "error", err)
		return nil
	}

	if count == 1 {
		l.redis.Expire(ctx, redisKey, l.limits.Window)
	}

	if int(count) > l.limits.Requests {
		return ErrRateLimited
	}
	return nil
}

// Remaining returns how many requests key may still make in the current
// window. A limiter without Redis reports the full budget.
func (l *Limiter) Remaining(ctx context.Context, scope, key string) (int, error) {
	if !l.enabled() {
		return l.limitOrZero(), nil
	}

	count, err := l.redis.Get(ctx, fmt.Sprintf("ratelimit:%s:%s", scope, key)).Int()
	if errors.Is(err, redis.Nil) {
		return l.limits.Requests, nil
	}
	if err != nil {
		return l.limits.Requests, err
	}

	remaining := l.limits.Requests - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (l *Limiter) enabled() bool {
	return l != nil && l.redis != nil
}

func (l *Limiter) limitOrZero() int {
	if l == nil {
		return 0
	}
	return l.limits.Requests
}

// Middleware limits requests per client IP under scope. Allowed requests carry
// X-RateLimit-Limit and X-RateLimit-Remaining headers; limited ones get 429
// with a JSON error body.
func (l *Limiter) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if err := l.Allow(r.Context(), scope, ip); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.limits.Window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, "{\"error\":%q}\n", err.Error())
				return
			}
			if l.enabled() {
				if n, err := l.Remaining(r.Context(), scope, ip); err == nil {
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limits.Requests))
					w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(n))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
