// middleware/rate_limiter.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP and blocks clients that
// exceed their limit for blockDuration.
type RateLimiter struct {
	limiters       map[string]*limiterEntry // keyed by "ip path"
	blockedIPs     map[string]time.Time
	mu             sync.Mutex
	defaultLimit   endpointLimit
	blockDuration  time.Duration
	idleTTL        time.Duration
	endpointLimits map[string]endpointLimit
	now            func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters:      make(map[string]*limiterEntry),
		blockedIPs:    make(map[string]time.Time),
		defaultLimit:  endpointLimit{limit: rate.Every(100 * time.Millisecond), burst: 20},
		blockDuration: 5 * time.Minute,
		// Longer than any bucket takes to refill, so eviction never resets a throttle.
		idleTTL: 10 * time.Minute,
		endpointLimits: map[string]endpointLimit{
			// Each request walks a whole downline.
			"/api/matching-bonus/calculate": {limit: rate.Every(time.Second), burst: 5},
			// Posting a full cycle is an expensive batch job.
			"/api/admin/matching-bonus/run-cycle": {limit: rate.Every(time.Minute), burst: 2},
		},
		now: time.Now,
	}
}

// Cleanup prunes expired blocks and idle limiters every interval until ctx
// is done.
func (r *RateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.prune()
		}
	}
}

func (r *RateLimiter) prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for ip, blockUntil := range r.blockedIPs {
		if now.After(blockUntil) {
			r.resetLocked(ip)
		}
	}
	for key, entry := range r.limiters {
		if now.Sub(entry.lastSeen) > r.idleTTL {
			delete(r.limiters, key)
		}
	}
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := r.now()

			r.mu.Lock()
			if blockUntil, blocked := r.blockedIPs[ip]; blocked {
				if now.Before(blockUntil) {
					r.mu.Unlock()
					return c.JSON(http.StatusTooManyRequests, map[string]string{
						"message":    "IP address blocked due to too many requests",
						"retryAfter": blockUntil.Format(time.RFC3339),
					})
				}
				r.resetLocked(ip)
			}

			lim := r.defaultLimit
			if l, ok := r.endpointLimits[c.Path()]; ok {
				lim = l
			}
			key := ip + " " + c.Path()
			entry, ok := r.limiters[key]
			if !ok {
				entry = &limiterEntry{limiter: rate.NewLimiter(lim.limit, lim.burst)}
				r.limiters[key] = entry
			}
			entry.lastSeen = now
			if !entry.limiter.AllowN(now, 1) {
				blockUntil := now.Add(r.blockDuration)
				r.blockedIPs[ip] = blockUntil
				r.mu.Unlock()
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"message":    "Too many requests",
					"retryAfter": blockUntil.Format(time.RFC3339),
				})
			}
			r.mu.Unlock()

			return next(c)
		}
	}
}

// resetLocked forgets the block and limiter state of ip. r.mu must be held.
func (r *RateLimiter) resetLocked(ip string) {
	delete(r.blockedIPs, ip)
	prefix := ip + " "
	for key := range r.limiters {
		if strings.HasPrefix(key, prefix) {
			delete(r.limiters, key)
		}
	}
}
