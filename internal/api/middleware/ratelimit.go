package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/freed/config"
	"github.com/d60-Lab/freed/pkg/response"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端（用户 ID 或 IP）的令牌桶限流
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(cfg.RPS),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

func (l *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	// 顺带清理长时间不活跃的客户端
	if len(l.visitors) > 1024 {
		for k, o := range l.visitors {
			if now.Sub(o.lastSeen) > l.idle {
				delete(l.visitors, k)
			}
		}
	}
	return v.limiter
}

// Middleware RPS <= 0 时不限流
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit <= 0 {
			c.Next()
			return
		}
		key := UserID(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !l.get(key, time.Now()).Allow() {
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
