package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ──────────────────────────────────────────────────────────────────
// Per-IP Token Bucket Rate Limiter
//
// Searches are CPU bound, so a single client must not be able to queue
// unbounded work. Each IP gets its own golang.org/x/time/rate bucket; an
// empty bucket answers HTTP 429 with Retry-After in whole seconds.
//
// A background goroutine drops buckets idle for cleanupIdleDuration.
// ──────────────────────────────────────────────────────────────────

const cleanupIdleDuration = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per client IP.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	perMinute int
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*ipLimiter
}

// NewRateLimiter allows ratePerMin requests per minute per IP with the given
// burst. Idle buckets are swept until ctx is done.
func NewRateLimiter(ctx context.Context, ratePerMin, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		limit:     rate.Limit(float64(ratePerMin) / 60.0),
		burst:     burst,
		perMinute: ratePerMin,
		now:       time.Now,
		clients:   make(map[string]*ipLimiter),
	}
	go rl.cleanupLoop(ctx)
	return rl
}

// allow reports whether ip may proceed and, if not, how long to wait.
func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	cl, ok := rl.clients[ip]
	if !ok {
		cl = &ipLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()

	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Middleware rejects over-limit requests with 429 and Retry-After.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := rl.allow(c.ClientIP())
		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			respondError(c, http.StatusTooManyRequests, ErrCodeRateLimited,
				fmt.Sprintf("rate limit of %d requests/minute exceeded; retry in %ds", rl.perMinute, secs), "")
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep(rl.now().Add(-cleanupIdleDuration))
		}
	}
}

// sweep drops buckets idle since before cutoff.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}
