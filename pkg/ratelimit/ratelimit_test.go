package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWindowAllow(t *testing.T) {
	w := newWindow(3, 10*time.Second)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !w.allow(now) {
			t.Fatalf("第 %d 次应放行", i+1)
		}
	}
	if w.allow(now) {
		t.Fatal("超限后应拒绝")
	}

	// 窗口滑出后配额恢复
	if !w.allow(now.Add(11 * time.Second)) {
		t.Fatal("窗口滑出后应放行")
	}
}

func TestWaitCancellation(t *testing.T) {
	w := newWindow(1, time.Hour)
	if !w.allow(time.Now()) {
		t.Fatal("首个请求应放行")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.wait(ctx); err == nil {
		t.Fatal("配额耗尽且 ctx 超时应返回错误")
	}
}

func TestLimiterEndpoints(t *testing.T) {
	l := NewLimiter()

	// 已知端点有独立配额
	if !l.Allow("gamma:markets:get") {
		t.Fatal("gamma 端点应放行")
	}
	// 未知端点落入 fallback
	if !l.Allow("unknown:endpoint") {
		t.Fatal("未知端点应走 fallback")
	}

	// 各端点桶相互独立
	small := newWindow(1, 10*time.Second)
	l.mu.Lock()
	l.windows["test:a"] = small
	l.mu.Unlock()

	if !l.Allow("test:a") {
		t.Fatal("test:a 首次应放行")
	}
	if l.Allow("test:a") {
		t.Fatal("test:a 应已超限")
	}
	if !l.Allow("gamma:markets:get") {
		t.Fatal("其他端点不应受影响")
	}
}
