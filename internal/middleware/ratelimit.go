package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/curtas/internal/metrics"
	"github.com/user/curtas/internal/utils"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = time.Hour

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按用户或 IP 的令牌桶限流
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter perMinute 为每分钟允许的请求数，同时作为突发上限
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		now:      time.Now,
	}
}

// Allow 消耗 key 的一个令牌
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// Cleanup 移除空闲超过一小时的 key，返回移除数量
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	cutoff := rl.now().Add(-limiterIdleTTL)
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// StartCleanup 周期清理，ctx 取消后退出
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}

// Middleware 登录用户按 user id 计数，匿名按 IP 哈希
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + utils.HashIP(c.ClientIP())
		if uid := GetUserID(c); uid > 0 {
			key = "user:" + strconv.Itoa(uid)
		}
		if !rl.Allow(key) {
			metrics.HTTPRateLimited.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", "60")
			utils.TooManyRequests(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}
