package api

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openav/matrix-gate/internal/infrastructure/config"
)

// Idle limiter buckets are evicted so one-off clients do not accumulate.
const (
	limiterSweepInterval = time.Minute
	limiterIdleEvict     = 3 * time.Minute
)

// rateLimiter hands out one token bucket per client address. Buckets
// refill at the configured per-minute rate and allow short bursts.
type rateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time

	// now is swappable for tests.
	now func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		clients:   make(map[string]*clientLimiter),
		limit:     rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:     cfg.Burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// allow reports whether the client may make another request now.
func (rl *rateLimiter) allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterSweepInterval {
		for a, c := range rl.clients {
			if now.Sub(c.lastSeen) >= limiterIdleEvict {
				delete(rl.clients, a)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[addr]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[addr] = c
	}
	c.lastSeen = now

	return c.limiter.Allow()
}

// rateLimitMiddleware rejects clients that exceed their request budget.
func rateLimitMiddleware(rl *rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientIP(r)) {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
