package middleware

import (
	"strconv"
	"sync"

	"document-qa-backend/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit limits requests per client IP. Limits are tracked in memory,
// which is sufficient for a single-process deployment.
//
// reqs is the number of requests allowed per window, windowSeconds the
// window length. Health checks are exempt.
func RateLimit(reqs int, windowSeconds int) gin.HandlerFunc {
	if reqs <= 0 {
		reqs = 60
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	limiters := newLimiterPool(rate.Limit(float64(reqs)/float64(windowSeconds)), reqs)

	return func(c *gin.Context) {
		if c.FullPath() == "/health" || c.FullPath() == "/ready" {
			c.Next()
			return
		}

		limiter := limiters.get(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(reqs))
		if !limiter.Allow() {
			c.Header("X-RateLimit-Remaining", "0")
			utils.RespondWithRateLimited(c, "Too many requests. Please try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// limiterPool holds one token bucket per client IP. The pool is reset once
// it grows past maxEntries so an IP-rotating client cannot grow it without
// bound.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

const maxEntries = 10000

func newLimiterPool(limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, ok := p.limiters[key]; ok {
		return limiter
	}
	if len(p.limiters) >= maxEntries {
		p.limiters = make(map[string]*rate.Limiter)
	}
	limiter := rate.NewLimiter(p.limit, p.burst)
	p.limiters[key] = limiter
	return limiter
}
