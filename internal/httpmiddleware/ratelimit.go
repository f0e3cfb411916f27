package httpmiddleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portal/internal/apperr"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// SimpleTokenBucket is an in-memory rate limiter for a single API instance.
// Use RedisLimiter when running more than one.
type SimpleTokenBucket struct {
	capacity int
	rate     int
	idle     time.Duration
	mu       sync.Mutex
	state    map[string]*bucket
	swept    time.Time
	now      func() time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates limiter with capacity tokens and rate per minute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	// a bucket untouched for this long has refilled completely
	idle := time.Minute
	if perMinute > 0 {
		idle = time.Duration(capacity) * time.Minute / time.Duration(perMinute)
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		idle:     idle,
		state:    make(map[string]*bucket),
		now:      time.Now,
	}
}

// Allow implements Limiter.
func (l *SimpleTokenBucket) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true, nil
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// sweep drops full buckets. A dropped key starts over at capacity, same as a refilled one.
func (l *SimpleTokenBucket) sweep(now time.Time) {
	if now.Sub(l.swept) < l.idle {
		return
	}
	for k, b := range l.state {
		if now.Sub(b.last) >= l.idle {
			delete(l.state, k)
		}
	}
	l.swept = now
}

// RateLimit enforces l per client IP. route namespaces the key so separate limits can be
// applied to individual endpoints. Limiter errors let the request through.
func RateLimit(l Limiter, route string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		ok, err := l.Allow(c.Request.Context(), route+":"+ip)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(apperr.ErrTooManyRequests.Status, apperr.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
