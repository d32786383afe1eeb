// Package ratelimit throttles public form endpoints per client IP.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"backend-birdtours/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const idleAfter = time.Hour

// Limiter keeps one token bucket per key. Buckets idle for an hour are
// dropped by Cleanup.
type Limiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// PerMinute allows n requests a minute with a burst of n.
func PerMinute(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return New(rate.Every(time.Minute/time.Duration(n)), n)
}

func New(limit rate.Limit, burst int) *Limiter {
	return &Limiter{
		limit:    limit,
		burst:    burst,
		limiters: map[string]*rate.Limiter{},
		lastSeen: map[string]time.Time{},
		now:      time.Now,
	}
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.lastSeen[key] = now
	return limiter.AllowN(now, 1)
}

// Cleanup removes buckets not seen for an hour.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, seen := range l.lastSeen {
		if now.Sub(seen) > idleAfter {
			delete(l.limiters, key)
			delete(l.lastSeen, key)
		}
	}
}

// Size reports how many keys are tracked.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Middleware answers 429 once a client IP exhausts its bucket for the route.
func (l *Limiter) Middleware(logger *logrus.Logger) fiber.Handler {
	logger = logging.OrDiscard(logger)
	return func(c *fiber.Ctx) error {
		key := c.Path() + "|" + c.IP()
		if !l.Allow(key) {
			logger.WithFields(logrus.Fields{
				"client_ip": c.IP(),
				"path":      c.Path(),
				"type":      "rate_limit",
			}).Warn("Rate limit exceeded")
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests. Please try again later.")
		}
		return c.Next()
	}
}
