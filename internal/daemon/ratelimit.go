package daemon

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/agendly/whatsapp-agent/internal/models"
)

// RateLimiter implements IP-based rate limiting using the token bucket
// algorithm. It protects the message submission endpoints from runaway
// callers; the remote network bans accounts that send too aggressively,
// so the limit is enforced before a message ever reaches the session.
type RateLimiter struct {
	buckets       sync.Map // map[string]*bucket (IP address -> bucket)
	rate          float64  // Tokens per second
	burst         int      // Maximum burst capacity
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// bucket holds the token state for a single IP address.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates an IP-based rate limiter. rate is tokens added
// per second, burst the bucket capacity; NewRateLimiter(5.0, 10) allows
// bursts of up to 10 requests, then 5 requests/second sustained.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		rate:        rate,
		burst:       burst,
		stopCleanup: make(chan struct{}),
	}

	// Stale buckets are swept every 5 minutes.
	rl.cleanupTicker = time.NewTicker(5 * time.Minute)
	go rl.cleanup()

	logrus.WithFields(logrus.Fields{
		"rate":  rate,
		"burst": burst,
	}).Info("Rate limiter initialized")

	return rl
}

// Middleware returns a gin middleware enforcing the limit per client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !rl.Allow(ip) {
			logrus.WithFields(logrus.Fields{
				"ip":     ip,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("Rate limit exceeded")

			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ActionResponse{
				Success: false,
				Error:   "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}

// Allow reports whether a request from the given IP should proceed,
// consuming one token when it does.
func (rl *RateLimiter) Allow(ip string) bool {
	now := time.Now()

	value, _ := rl.buckets.LoadOrStore(ip, &bucket{
		tokens:     float64(rl.burst),
		lastRefill: now,
	})

	b := value.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	// Refill based on elapsed time, capped at the burst size.
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastRefill = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}

	return false
}

// cleanup removes buckets that have been idle for 10 minutes so the map
// does not grow without bound.
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			count := 0

			rl.buckets.Range(func(key, value interface{}) bool {
				b := value.(*bucket)
				b.mu.Lock()
				stale := b.lastRefill.Before(cutoff)
				b.mu.Unlock()

				if stale {
					rl.buckets.Delete(key)
					count++
				}
				return true
			})

			if count > 0 {
				logrus.WithField("count", count).Debug("Cleaned up stale rate limiter buckets")
			}

		case <-rl.stopCleanup:
			rl.cleanupTicker.Stop()
			return
		}
	}
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Size returns the number of IP addresses currently tracked.
func (rl *RateLimiter) Size() int {
	count := 0
	rl.buckets.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}
