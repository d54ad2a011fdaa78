package mw

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim   *rate.Limiter
	start time.Time
	count int
	ts    time.Time
}

// RL 为每个 key 维护一个令牌桶或固定窗口计数，空闲超过 ttl 的条目由 gc 回收。
type RL struct {
	mu     sync.Mutex
	m      map[string]*keyLimiter
	r      rate.Limit
	b      int
	window time.Duration
	ttl    time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

func NewRateLimiter(r rate.Limit, burst int, ttl time.Duration) *RL {
	return &RL{m: make(map[string]*keyLimiter), r: r, b: burst, ttl: ttl, now: time.Now, stop: make(chan struct{})}
}

// NewWindowLimiter 每个 key 在从首个请求起算的 window 内最多放行 n 次。
func NewWindowLimiter(n int, window time.Duration) *RL {
	rl := NewRateLimiter(0, n, window)
	rl.window = window
	return rl
}

// Allow 按 key 判定本次请求是否放行。
func (rl *RL) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	kl, ok := rl.m[key]
	if !ok {
		kl = &keyLimiter{start: now}
		if rl.window == 0 {
			kl.lim = rate.NewLimiter(rl.r, rl.b)
		}
		rl.m[key] = kl
	}
	kl.ts = now
	if rl.window == 0 {
		return kl.lim.AllowN(now, 1)
	}
	if now.Sub(kl.start) >= rl.window {
		kl.start, kl.count = now, 0
	}
	if kl.count >= rl.b {
		return false
	}
	kl.count++
	return true
}

func (rl *RL) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for k, v := range rl.m {
				if now.Sub(v.ts) > rl.ttl {
					delete(rl.m, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop 停止 GC goroutine，用于优雅停服。
func (rl *RL) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// RateLimit 返回一个基于 IP+路径的令牌桶限速中间件。
func RateLimit(r rate.Limit, burst int) (gin.HandlerFunc, *RL) {
	rl := NewRateLimiter(r, burst, 2*time.Minute)
	go rl.gc()
	return Limit(rl), rl
}

// RateLimitWindow 允许每个来源在固定窗口内最多 n 次请求，窗口结束后计数清零。
func RateLimitWindow(n int, window time.Duration) (gin.HandlerFunc, *RL) {
	rl := NewWindowLimiter(n, window)
	go rl.gc()
	return Limit(rl), rl
}

func Limit(rl *RL) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c.Request.RemoteAddr)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !rl.Allow(ip + "|" + path) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "too many requests"})
			return
		}
		c.Next()
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
