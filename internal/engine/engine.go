package engine

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/betbot/spreadbot/internal/domain"
	"github.com/betbot/spreadbot/internal/feed"
	"github.com/betbot/spreadbot/pkg/windowclock"
)

// PriceSource 当前参考价来源（由 *feed.Feed 实现）。
// 过期样本必须返回 ok=false，绝不返回 last known good。
type PriceSource interface {
	CurrentPrice(asset string) (float64, bool)
}

// ConfigSource 档位配置来源。实现方（store 层）负责缓存：
// 刷新失败时继续返回上一次成功的配置，而不是让交易停摆。
type ConfigSource interface {
	TierTable(asset string) (domain.TierTable, bool)
	IsPaused() bool
}

// PositionSink 窗口翻转时接收已入场持仓（由 resolution 模块实现）。
// 移交后持仓的所有权完全归 Resolution，Engine 不再触碰。
type PositionSink interface {
	Submit(windowKey string, positions []*domain.Position)
}

// AssetConfig 单个被跟踪资产
type AssetConfig struct {
	Symbol string // BTC / ETH...
	Clock  windowclock.Clock
}

// Config Engine 参数
type Config struct {
	Assets       []AssetConfig
	TickInterval time.Duration
}

// Engine 决策循环：单 goroutine 驱动，每 tick 依次处理全部资产。
// 行情写入与评估读取通过 feed 的 per-asset cell 解耦（覆盖式写入），
// 评估路径上没有跨 goroutine 的共享可变状态。
type Engine struct {
	cfg      Config
	prices   PriceSource
	openBook *feed.OpenBook
	eval     *Evaluator
	sink     PositionSink
	configs  ConfigSource
	onRollover func(prevKey, nextKey string) // 窗口翻转钩子（清理市场缓存、日志切换等）

	mu            sync.Mutex
	lastWindowEnd map[string]int64                // asset -> 当前窗口
	openPositions map[string][]*domain.Position   // windowKey -> 本窗口持仓
}

func New(cfg Config, prices PriceSource, openBook *feed.OpenBook, eval *Evaluator, sink PositionSink, configs ConfigSource) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	e := &Engine{
		cfg:           cfg,
		prices:        prices,
		openBook:      openBook,
		eval:          eval,
		sink:          sink,
		configs:       configs,
		lastWindowEnd: make(map[string]int64),
		openPositions: make(map[string][]*domain.Position),
	}
	eval.OnPlaced(e.recordPosition)
	return e
}

// OnRollover 注册窗口翻转钩子。prevKey 是刚结束的窗口，
// nextKey 是翻转资产自己的新窗口（混合周期下各资产各自翻转）。
func (e *Engine) OnRollover(fn func(prevKey, nextKey string)) { e.onRollover = fn }

// Run 阻塞运行决策循环直到 ctx 取消。
// 关停语义：停止产生新委托，但绝不撤销已挂出的订单——resting 限价单
// 是有意留在场内的。
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	log.Infof("🚀 决策循环启动: assets=%d interval=%s", len(e.cfg.Assets), e.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("🛑 决策循环退出（已挂订单保持不动）")
			e.flushAll()
			return
		case now := <-ticker.C:
			e.safeTick(ctx, now)
		}
	}
}

// safeTick 单次 tick，panic 不会终止循环
func (e *Engine) safeTick(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("💥 tick panic 已恢复: %v\n%s", r, debug.Stack())
		}
	}()
	e.tick(ctx, now)
}

func (e *Engine) tick(ctx context.Context, now time.Time) {
	paused := e.configs != nil && e.configs.IsPaused()

	for _, asset := range e.cfg.Assets {
		windowEnd := asset.Clock.WindowEndUnix(now)
		windowStart := asset.Clock.WindowStartUnix(now)
		windowKey := asset.Clock.Slug(windowEnd)

		e.maybeRollover(asset, windowEnd, now)

		// 开盘价捕获/重试/soft reset（翻转后每 tick 推进一次）
		e.openBook.Observe(asset.Symbol, windowEnd, windowStart, now)

		if paused {
			continue
		}

		current, ok := e.prices.CurrentPrice(asset.Symbol)
		if !ok {
			continue // 无新鲜样本 = 无信号，本 tick 直接跳过
		}

		open, ok := e.openBook.WindowOpen(asset.Symbol)
		if !ok {
			continue // 开盘价未捕获（重试中或已 soft reset）
		}

		var tiers domain.TierTable
		if e.configs != nil {
			tiers, ok = e.configs.TierTable(asset.Symbol)
			if !ok || len(tiers) == 0 {
				continue
			}
		}

		e.eval.EvaluateTick(ctx, TickInput{
			Asset:         asset.Symbol,
			WindowKey:     windowKey,
			WindowEndUnix: windowEnd,
			SecondsInto:   asset.Clock.SecondsInto(now),
			Current:       current,
			Open:          open.Price,
			Tiers:         tiers,
			Now:           now,
		})
	}
}

// maybeRollover 检测窗口翻转并移交上一窗口的持仓
func (e *Engine) maybeRollover(asset AssetConfig, windowEnd int64, now time.Time) {
	e.mu.Lock()
	prev, seen := e.lastWindowEnd[asset.Symbol]
	if !seen || prev == windowEnd {
		e.lastWindowEnd[asset.Symbol] = windowEnd
		e.mu.Unlock()
		return
	}
	e.lastWindowEnd[asset.Symbol] = windowEnd

	prevKey := asset.Clock.Slug(prev)
	nextKey := asset.Clock.Slug(windowEnd)
	positions := e.openPositions[prevKey]
	delete(e.openPositions, prevKey)
	e.mu.Unlock()

	log.Infof("🔄 窗口翻转: asset=%s %s -> %s positions=%d",
		asset.Symbol, prevKey, nextKey, len(positions))

	// 三元组随窗口作废，placed key 一并清理
	e.eval.ForgetWindow(prevKey)
	if e.onRollover != nil {
		e.onRollover(prevKey, nextKey)
	}
	if e.sink != nil && len(positions) > 0 {
		e.sink.Submit(prevKey, positions)
	}
}

// recordPosition 登记本窗口新持仓（Evaluator 回调）
func (e *Engine) recordPosition(pos *domain.Position) {
	if pos == nil {
		return
	}
	e.mu.Lock()
	e.openPositions[pos.WindowKey] = append(e.openPositions[pos.WindowKey], pos)
	e.mu.Unlock()
}

// flushAll 退出前把仍未移交的持仓交给 Resolution
func (e *Engine) flushAll() {
	e.mu.Lock()
	pending := e.openPositions
	e.openPositions = make(map[string][]*domain.Position)
	e.mu.Unlock()

	if e.sink == nil {
		return
	}
	for windowKey, positions := range pending {
		if len(positions) > 0 {
			e.sink.Submit(windowKey, positions)
		}
	}
}

// OpenPositions 返回窗口当前持仓的快照（状态页用）
func (e *Engine) OpenPositions(windowKey string) []*domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	src := e.openPositions[windowKey]
	out := make([]*domain.Position, len(src))
	copy(out, src)
	return out
}
