package http

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/booking-service/internal/config"
	apperrors "github.com/spec-kit/booking-service/pkg/util/errorutil"
)

const limiterCleanupInterval = 5 * time.Minute

// clientLimiter hands out one token bucket per client key.
type clientLimiter struct {
	limiters    sync.Map // map[string]*rate.Limiter
	rate        rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		rate:        rate.Limit(float64(cfg.RequestsPerMinute) / time.Minute.Seconds()),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	l.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops buckets that have refilled completely, i.e. idle clients.
func (l *clientLimiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastCleanup) < limiterCleanupInterval {
		return
	}
	l.lastCleanup = time.Now()
	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitByIP throttles credential endpoints per client IP. A non-positive rate disables it.
func RateLimitByIP(cfg config.RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if cfg.RequestsPerMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	limiter := newClientLimiter(cfg)

	return func(c *fiber.Ctx) error {
		key := c.IP()
		bucket := limiter.get(key)
		if bucket.Allow() {
			return c.Next()
		}

		reservation := bucket.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()
		retryAfter := max(int(delay.Seconds()), 1)

		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		logger.Warn("rate limit exceeded",
			zap.String("ip", key),
			zap.String("path", c.Path()),
			zap.Int("retry_after", retryAfter))
		return apperrors.NewTooManyRequests("too many requests, try again later")
	}
}
