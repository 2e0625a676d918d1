package telephony

import (
	"context"
	"net/http"
	"sync"
	"time"

	"dealership-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdle is how long an IP's bucket survives without traffic.
const DefaultLimiterIdle = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than the idle window are dropped by Run.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	idle     time.Duration
	clock    func() time.Time
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &IPRateLimiter{
		visitors: map[string]*visitor{},
		rate:     rate.Limit(rps),
		burst:    burst,
		idle:     DefaultLimiterIdle,
		clock:    time.Now,
	}
}

// WithClock replaces the time source used for idle tracking.
func (i *IPRateLimiter) WithClock(clock func() time.Time) *IPRateLimiter {
	i.clock = clock
	return i
}

func (i *IPRateLimiter) allow(ip string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.visitors[ip] = v
	}
	v.lastSeen = i.clock()
	return v.limiter.Allow()
}

// prune drops idle buckets and returns how many remain.
func (i *IPRateLimiter) prune() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	cutoff := i.clock().Add(-i.idle)
	for ip, v := range i.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(i.visitors, ip)
		}
	}
	return len(i.visitors)
}

// Run evicts idle buckets every interval until ctx is done.
func (i *IPRateLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.prune()
		}
	}
}

// Middleware rejects requests over the limit with 429. A non-positive rate
// disables limiting. It guards the operator-facing endpoints only; voice
// platform event deliveries are never throttled.
func (i *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if i.rate <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if !i.allow(ip) {
			logger.FromGin(c).Warn("rate limit exceeded", "ip", ip, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
