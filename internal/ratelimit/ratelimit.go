// Package ratelimit throttles sensitive auth endpoints (login, OTP) with a
// fixed-window counter in Redis. Grounded on aditya14as-ride-hailing's
// middleware.RateLimiter (Incr+Expire pipeline), adapted to Fiber's Handler
// signature since this repo's router is Fiber, not chi/net-http, and scoped
// to a caller-supplied key rather than client IP + path so callers can
// throttle per-email OTP requests too (spec section 7 RateLimit).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kayafamilly/carpool-core/internal/apperr"
)

// Limiter enforces "at most N actions per window" per key.
type Limiter struct {
	redis    *redis.Client
	requests int
	window   time.Duration
}

// New builds a Limiter. A nil redis client degrades to allow-everything,
// matching the cache layer's best-effort posture (spec section 4.10) rather
// than failing closed on every request when Redis is unavailable.
func New(client *redis.Client, requests int, window time.Duration) *Limiter {
	return &Limiter{redis: client, requests: requests, window: window}
}

// Allow increments the counter for key and reports whether the action is
// still within budget for the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (allowed bool, remaining int, err error) {
	if l.redis == nil {
		return true, l.requests, nil
	}

	pipe := l.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		// fail open: a Redis outage shouldn't block logins/OTP entirely.
		return true, l.requests, nil
	}

	count := int(incr.Val())
	remaining = l.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.requests, remaining, nil
}

// Middleware returns a Fiber handler that throttles by a key derived from
// the request (typically IP + route, or an email field once parsed).
func (l *Limiter) Middleware(keyFn func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("ratelimit:%s", keyFn(c))

		allowed, remaining, err := l.Allow(c.Context(), key)
		if err != nil {
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.requests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			return apperr.RateLimit("too many requests, please try again later")
		}
		return c.Next()
	}
}

// KeyByIPAndPath is the default key function: client IP + request path,
// matching the teacher's clientIP+r.URL.Path key shape.
func KeyByIPAndPath(c *fiber.Ctx) string {
	return fmt.Sprintf("%s:%s", c.IP(), c.Path())
}
