// Package ratelimit provides per-key token buckets for abuse-prone
// endpoints (login, contact form, chat).
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const defaultIdleTTL = 30 * time.Minute

// Limiter hands out one token bucket per key.
type Limiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New allows events per interval for each key, with the given burst. A
// non-positive events count disables limiting.
func New(events int, interval time.Duration, burst int) *Limiter {
	limit := rate.Inf
	if events > 0 && interval > 0 {
		limit = rate.Limit(float64(events) / interval.Seconds())
	}
	if burst <= 0 {
		burst = max(events, 1)
	}
	return &Limiter{
		limit:   limit,
		burst:   burst,
		idleTTL: defaultIdleTTL,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// PerMinute is New(events, time.Minute, events).
func PerMinute(events int) *Limiter {
	return New(events, time.Minute, events)
}

// PerHour is New(events, time.Hour, events).
func PerHour(events int) *Limiter {
	return New(events, time.Hour, events)
}

// Allow reports whether an event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// Reserve is Allow that also reports how long the caller should wait before
// retrying when the event is refused.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	if l.limit == rate.Inf {
		return true, 0
	}

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) > l.idleTTL {
		l.sweepLocked(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep drops buckets idle for longer than the idle TTL.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(l.now())
}

func (l *Limiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// KeyFunc extracts the rate-limit key from a request.
type KeyFunc func(c *gin.Context) string

// ByClientIP keys requests by gin's resolved client IP.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// Middleware refuses requests over the limit with 429 and Retry-After.
func Middleware(l *Limiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.Reserve(key(c))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests, please slow down",
			})
			return
		}
		c.Next()
	}
}
