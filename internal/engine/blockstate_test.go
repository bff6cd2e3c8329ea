package engine

import (
	"testing"
	"time"
)

func TestBlockExpiry(t *testing.T) {
	b := NewBlockState()
	now := time.Now()
	until := now.Add(90 * time.Second)

	b.Block("BTC", "t1", until)

	if !b.IsBlocked("BTC", "t1", now) {
		t.Error("阻断期内应为 blocked")
	}
	if !b.IsBlocked("BTC", "t1", until.Add(-time.Millisecond)) {
		t.Error("until 前一毫秒仍应 blocked")
	}
	// 恰好到期时刻即解除
	if b.IsBlocked("BTC", "t1", until) {
		t.Error("now == until 不应 blocked")
	}
	// 其他资产/档位不受影响
	if b.IsBlocked("ETH", "t1", now) || b.IsBlocked("BTC", "t2", now) {
		t.Error("阻断不应跨资产/档位泄漏")
	}
}

func TestBlockNeverShortens(t *testing.T) {
	b := NewBlockState()
	now := time.Now()

	b.Block("BTC", "t1", now.Add(3*time.Minute))
	b.Block("BTC", "t1", now.Add(time.Minute)) // 更短的请求被忽略

	until, ok := b.BlockedUntil("BTC", "t1")
	if !ok || !until.Equal(now.Add(3*time.Minute)) {
		t.Errorf("阻断只能延长不能缩短: until=%v", until)
	}
}

func TestGuardPerAsset(t *testing.T) {
	b := NewBlockState()
	now := time.Now()

	b.SetGuard("BTC", now.Add(10*time.Minute))
	if !b.GuardActive("BTC", now) {
		t.Error("BTC guard 应生效")
	}
	if b.GuardActive("ETH", now) {
		t.Error("ETH 不应被 BTC 的 guard 影响")
	}
	if b.GuardActive("BTC", now.Add(11*time.Minute)) {
		t.Error("guard 到期后应解除")
	}
}

func TestGuardGlobal(t *testing.T) {
	b := NewBlockState()
	now := time.Now()

	// 全局 guard 压制所有资产
	b.SetGuard("", now.Add(10*time.Minute))
	if !b.GuardActive("BTC", now) || !b.GuardActive("ETH", now) {
		t.Error("全局 guard 应压制所有资产")
	}
}
