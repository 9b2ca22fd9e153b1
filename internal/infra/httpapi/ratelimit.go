package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"backoffice_notifier/internal/infra/metrics"

	"github.com/labstack/echo/v4"
)

// RateLimitPolicy defines a fixed-window limit: Limit requests per Window
// per derived key. The in-memory variant is per-process and best-effort; it
// protects against abuse, it is not a correctness mechanism.
type RateLimitPolicy struct {
	// Name is a short identifier for the limited endpoint, used for metrics.
	Name   string
	Window time.Duration
	Limit  int
	// Key builds the bucket key for this request, e.g. the client IP.
	Key func(echo.Context) string
}

// RateLimitStore abstracts a shared counter store (e.g. Redis) for
// fixed-window limiting across multiple instances.
type RateLimitStore interface {
	// Allow increments the counter for the key in the current window and
	// returns whether the request is allowed. If not, retryAfterSec tells
	// how long until the window resets.
	Allow(ctx echo.Context, key string, limit int, window time.Duration) (allowed bool, retryAfterSec int, err error)
}

// RateLimit returns an Echo middleware enforcing the policy with an
// in-memory fixed window.
func RateLimit(p RateLimitPolicy) echo.MiddlewareFunc {
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	if p.Limit <= 0 {
		p.Limit = 60
	}

	type bucket struct {
		start time.Time
		count int
	}
	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "global"
			if p.Key != nil {
				key = p.Key(c)
			}

			now := time.Now()
			mu.Lock()
			b, ok := buckets[key]
			if !ok || now.Sub(b.start) >= p.Window {
				buckets[key] = &bucket{start: now, count: 1}
				mu.Unlock()
				return next(c)
			}
			if b.count < p.Limit {
				b.count++
				mu.Unlock()
				return next(c)
			}
			retryAfter := int(p.Window-now.Sub(b.start)) / int(time.Second)
			mu.Unlock()

			metrics.IncRateLimitExceeded(p.Name)
			c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}
	}
}

// RateLimitWithStore enforces the policy against a shared store. Store
// errors fail open: throttling is best-effort, triggering is not.
func RateLimitWithStore(p RateLimitPolicy, s RateLimitStore) echo.MiddlewareFunc {
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	if p.Limit <= 0 {
		p.Limit = 60
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "global"
			if p.Key != nil {
				key = p.Key(c)
			}

			allowed, retryAfter, err := s.Allow(c, key, p.Limit, p.Window)
			if err != nil || allowed {
				return next(c)
			}

			metrics.IncRateLimitExceeded(p.Name)
			c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}
	}
}
