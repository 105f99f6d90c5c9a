package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
)

// 默认限流参数
const (
	DefaultRateLimitWindow      = time.Minute
	DefaultRateLimitMaxRequests = 60
)

// windowEntry 单个客户端的固定窗口计数
type windowEntry struct {
	count int
	start time.Time
}

// RateLimiter 按客户端地址的固定窗口限流器
//
// 进程内共享，多个处理协程并发访问时由互斥锁保护。
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	window  time.Duration
	max     int
	now     func() time.Time
	ticker  *time.Ticker // 清理协程运行期间非空
}

// RateLimiterOption 限流器选项
type RateLimiterOption func(*RateLimiter)

// WithClock 替换时钟（用于测试）
func WithClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) { l.now = now }
}

// NewRateLimiter 创建限流器，非正数参数使用默认值
func NewRateLimiter(window time.Duration, max int, opts ...RateLimiterOption) *RateLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if max <= 0 {
		max = DefaultRateLimitMaxRequests
	}

	l := &RateLimiter{
		entries: make(map[string]*windowEntry),
		window:  window,
		max:     max,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow 记录一次请求并返回是否放行
//
// 没有记录或距窗口起点超过窗口长度时重置为 {1, now}；否则计数加一，超过上限即拒绝。
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.start) > l.window {
		l.entries[key] = &windowEntry{count: 1, start: now}
		return true
	}

	entry.count++
	return entry.count <= l.max
}

// Update 应用新的限流参数，已有窗口保留；窗口变化时清理周期随之调整
func (l *RateLimiter) Update(window time.Duration, max int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if window > 0 && window != l.window {
		l.window = window
		if l.ticker != nil {
			l.ticker.Reset(window)
		}
	}
	if max > 0 {
		l.max = max
	}
}

// Len 当前跟踪的客户端数量
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Cleanup 清理窗口已过期的记录
func (l *RateLimiter) Cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.entries {
		if now.Sub(entry.start) > l.window {
			delete(l.entries, key)
		}
	}
}

// StartJanitor 启动后台清理，每个窗口周期执行一次，取消 ctx 后停止
func (l *RateLimiter) StartJanitor(ctx context.Context) {
	l.mu.Lock()
	ticker := time.NewTicker(l.window)
	l.ticker = ticker
	l.mu.Unlock()

	go func() {
		defer func() {
			l.mu.Lock()
			ticker.Stop()
			if l.ticker == ticker {
				l.ticker = nil
			}
			l.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

// Handler 限流中间件
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			_ = c.Error(apperrors.New(apperrors.ErrRateLimitExceeded, "client="+c.ClientIP()))
			c.Abort()
			return
		}
		c.Next()
	}
}
