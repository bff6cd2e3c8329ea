package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window 滑动窗口计数器
type window struct {
	mu       sync.Mutex
	limit    int
	size     time.Duration
	requests []time.Time
}

func newWindow(limit int, size time.Duration) *window {
	return &window{limit: limit, size: size}
}

// allow 尝试占用一个配额
func (w *window) allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.size)
	kept := w.requests[:0]
	for _, t := range w.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.requests = kept

	if len(w.requests) >= w.limit {
		return false
	}
	w.requests = append(w.requests, now)
	return true
}

// wait 阻塞直到拿到配额或 ctx 取消
func (w *window) wait(ctx context.Context) error {
	for {
		now := time.Now()
		if w.allow(now) {
			return nil
		}

		w.mu.Lock()
		waitTime := 100 * time.Millisecond
		if len(w.requests) > 0 {
			if d := w.size - now.Sub(w.requests[0]); d > waitTime {
				waitTime = d
			}
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// Limiter 按端点分桶的速率限制器。
// 限额取自 Polymarket 公布的 API 限制（10 秒窗口）。
type Limiter struct {
	mu       sync.RWMutex
	windows  map[string]*window
	fallback *window
}

// NewLimiter 创建限制器并装好常用端点的限额
func NewLimiter() *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		fallback: newWindow(500, 10*time.Second),
	}
	l.windows["clob:order:post"] = newWindow(2400, 10*time.Second)
	l.windows["clob:order:cancel"] = newWindow(2400, 10*time.Second)
	l.windows["clob:order:get"] = newWindow(150, 10*time.Second)
	l.windows["clob:orders:get"] = newWindow(150, 10*time.Second)
	l.windows["clob:book:get"] = newWindow(200, 10*time.Second)
	l.windows["clob:balance:get"] = newWindow(150, 10*time.Second)
	l.windows["gamma:markets:get"] = newWindow(125, 10*time.Second)
	return l
}

func (l *Limiter) windowFor(endpoint string) *window {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if w, ok := l.windows[endpoint]; ok {
		return w
	}
	return l.fallback
}

// Wait 阻塞直到端点允许请求
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	return l.windowFor(endpoint).wait(ctx)
}

// Allow 非阻塞检查
func (l *Limiter) Allow(endpoint string) bool {
	return l.windowFor(endpoint).allow(time.Now())
}
