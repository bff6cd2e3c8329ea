package engine

import (
	"sync"
	"time"
)

// guardGlobal 全局 early-guard 的 map key。
const guardGlobal = ""

// BlockState 档位阻断状态：per (asset, tier) 的 blockedUntil，加上
// per-asset（或全局）的 earlyGuardUntil。
//
// 明确由单个 Engine 实例独占持有（通过指针传递，绝不跨调度上下文共享）；
// 进程重启即丢失——这是刻意的：阻断状态是优化，不是正确性保证。
type BlockState struct {
	mu           sync.Mutex
	blockedUntil map[string]time.Time // asset + "\x00" + tier -> until
	guardUntil   map[string]time.Time // asset（guardGlobal = 全局）-> until
}

func NewBlockState() *BlockState {
	return &BlockState{
		blockedUntil: make(map[string]time.Time),
		guardUntil:   make(map[string]time.Time),
	}
}

func blockKey(asset, tier string) string { return asset + "\x00" + tier }

// Block 把 (asset, tier) 阻断到 until。已有更晚的阻断时不回退。
func (b *BlockState) Block(asset, tier string, until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := blockKey(asset, tier)
	if cur, ok := b.blockedUntil[k]; ok && cur.After(until) {
		return
	}
	b.blockedUntil[k] = until
}

// IsBlocked now 严格早于 blockedUntil 时为阻断中；到点后立即恢复可用。
func (b *BlockState) IsBlocked(asset, tier string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.blockedUntil[blockKey(asset, tier)]
	return ok && now.Before(until)
}

// BlockedUntil 返回 (asset, tier) 的阻断截止（诊断/状态页用）。
func (b *BlockState) BlockedUntil(asset, tier string) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.blockedUntil[blockKey(asset, tier)]
	return until, ok
}

// SetGuard 设置 early-guard 冷却。asset 为空串时为全局 guard。
func (b *BlockState) SetGuard(asset string, until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.guardUntil[asset]; ok && cur.After(until) {
		return
	}
	b.guardUntil[asset] = until
}

// GuardActive 检查资产是否处于 early-guard 冷却（全局 guard 覆盖所有资产）。
func (b *BlockState) GuardActive(asset string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if until, ok := b.guardUntil[guardGlobal]; ok && now.Before(until) {
		return true
	}
	until, ok := b.guardUntil[asset]
	return ok && now.Before(until)
}

// GuardUntil 返回资产生效中的 guard 截止（取全局与 per-asset 较晚者）。
func (b *BlockState) GuardUntil(asset string) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, gok := b.guardUntil[guardGlobal]
	a, aok := b.guardUntil[asset]
	switch {
	case gok && aok:
		if g.After(a) {
			return g, true
		}
		return a, true
	case gok:
		return g, true
	case aok:
		return a, true
	default:
		return time.Time{}, false
	}
}
