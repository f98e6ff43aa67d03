package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"yard-occupancy-backend/internal/logging"
)

// clientIdleTTL is how long a client's bucket survives without requests.
const clientIdleTTL = 10 * time.Minute

// ClientLimiters hands out one token bucket per client key. Buckets of clients
// that went quiet expire, so the set does not grow with every address seen.
type ClientLimiters struct {
	clients *cache.Cache
	mu      sync.Mutex
	r       rate.Limit
	b       int
}

// NewClientLimiters creates limiters allowing r requests per second with burst b.
func NewClientLimiters(r rate.Limit, b int) *ClientLimiters {
	return &ClientLimiters{
		clients: cache.New(clientIdleTTL, clientIdleTTL),
		r:       r,
		b:       b,
	}
}

// Get returns the limiter for key, creating it on first use.
func (l *ClientLimiters) Get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.clients.Get(key); ok {
		limiter := v.(*rate.Limiter)
		l.clients.SetDefault(key, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(l.r, l.b)
	l.clients.SetDefault(key, limiter)
	return limiter
}

// Len reports how many clients currently hold a bucket.
func (l *ClientLimiters) Len() int {
	return l.clients.ItemCount()
}

// RateLimiter is a middleware for per-client-IP rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiters := NewClientLimiters(r, b)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiters.Get(ip).Allow() {
			logging.Warnf(c.Request.Context(), "rate limit exceeded for %s", ip)
			if r > 0 && r != rate.Inf {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(1/float64(r)))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":  "rate_limited",
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}
