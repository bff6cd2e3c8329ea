package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/spreadbot/internal/domain"
	"github.com/betbot/spreadbot/internal/execution"
	"github.com/betbot/spreadbot/internal/metrics"
)

var log = logrus.WithField("component", "engine")

// Placer 下单入口（由 *execution.Adapter 实现；测试注入假实现）
type Placer interface {
	PlaceEntry(ctx context.Context, req execution.Request) (*domain.Position, error)
}

// RiskGate 风控状态快照来源（由 *resolution.Resolver 实现）。
// 连败冷却在这里读取：它是资金层的全局闸，独立于档位阻断。
type RiskGate interface {
	RiskSnapshot() domain.RiskState
}

// EvalConfig 评估器参数
type EvalConfig struct {
	// FailsafeCeilingPct 价差绝对值硬上限。超过视为坏数据（交叉对、
	// 小数点错位），本 tick 跳过该资产，不触发任何档位。
	FailsafeCeilingPct float64

	// Early guard：窗口前 GuardWindowSec 秒内 |spread| 超过
	// GuardThresholdPct 时，设置 guard 冷却并压制该资产（或全局）的
	// 全部档位评估。
	GuardThresholdPct float64
	GuardWindowSec    int
	GuardCooldown     time.Duration
	GuardGlobal       bool

	// BalanceBackoff 余额/授权不足后的全局下单退避时长
	BalanceBackoff time.Duration

	// StakeUSD 每次入场的名义金额（外部配置提供）
	StakeUSD float64
}

func (c *EvalConfig) applyDefaults() {
	if c.FailsafeCeilingPct <= 0 {
		c.FailsafeCeilingPct = 10
	}
	if c.GuardCooldown <= 0 {
		c.GuardCooldown = 10 * time.Minute
	}
	if c.BalanceBackoff <= 0 {
		c.BalanceBackoff = 2 * time.Minute
	}
}

// TickInput 一次评估的输入（每 tick 每资产一份）
type TickInput struct {
	Asset         string
	WindowKey     string
	WindowEndUnix int64
	SecondsInto   int
	Current       float64 // 当前参考价
	Open          float64 // 窗口开盘参考价
	Tiers         domain.TierTable
	Now           time.Time
}

// Evaluator 档位评估器。
//
// 不变式：
//   - 档位按 Rank 从高到低评估，首个成交后本 tick 结束；
//   - (tier, asset, window) 三元组只会成交一次（placed key 幂等）；
//   - 高档位成交时，按配置阻断所有更低档位 BlockDuration；
//   - guard / failsafe / 退避期间不产生任何委托。
//
// 单线程使用：只允许 Engine 的 tick 循环调用 EvaluateTick。
type Evaluator struct {
	cfg    EvalConfig
	blocks *BlockState
	placer Placer
	risk   RiskGate

	mu           sync.Mutex
	placed       map[string]bool // asset + "|" + tier + "|" + windowKey
	backoffUntil time.Time

	onPlaced func(pos *domain.Position)
	onError  func(asset string, err error)
}

func NewEvaluator(cfg EvalConfig, blocks *BlockState, placer Placer) *Evaluator {
	cfg.applyDefaults()
	return &Evaluator{
		cfg:    cfg,
		blocks: blocks,
		placer: placer,
		placed: make(map[string]bool),
	}
}

// OnPlaced 注册成交回调（记录持仓、持久化）
func (e *Evaluator) OnPlaced(fn func(pos *domain.Position)) { e.onPlaced = fn }

// SetRiskGate 注入风控闸。冷却期间不产生任何新委托。
func (e *Evaluator) SetRiskGate(g RiskGate) { e.risk = g }

// OnError 注册错误回调（上报，不中断循环）
func (e *Evaluator) OnError(fn func(asset string, err error)) { e.onError = fn }

func placedKey(asset, tier, windowKey string) string {
	return asset + "|" + tier + "|" + windowKey
}

// EvaluateTick 评估单个资产的当前 tick。
// 返回本 tick 新产生的持仓（无成交时为 nil）。
func (e *Evaluator) EvaluateTick(ctx context.Context, in TickInput) *domain.Position {
	spread := domain.SignedSpreadPct(in.Current, in.Open)
	abs := spread
	if abs < 0 {
		abs = -abs
	}

	// 坏数据保险丝：超常价差直接跳过，绝不触发档位
	if abs > e.cfg.FailsafeCeilingPct {
		log.Warnf("⚠️ 价差超过保险丝上限，跳过: asset=%s spread=%.2f%% ceiling=%.2f%%",
			in.Asset, spread, e.cfg.FailsafeCeilingPct)
		return nil
	}

	// Early guard：窗口极早期的超大波动视为异常行情，整体熔断
	if e.cfg.GuardThresholdPct > 0 && in.SecondsInto < e.cfg.GuardWindowSec && abs >= e.cfg.GuardThresholdPct {
		guardAsset := in.Asset
		if e.cfg.GuardGlobal {
			guardAsset = guardGlobal
		}
		e.blocks.SetGuard(guardAsset, in.Now.Add(e.cfg.GuardCooldown))
		metrics.GuardTrips.Add(1)
		log.Warnf("🛑 early guard 触发: asset=%s spread=%.2f%% s=%d cooldown=%s",
			in.Asset, spread, in.SecondsInto, e.cfg.GuardCooldown)
		return nil
	}

	if e.blocks.GuardActive(in.Asset, in.Now) {
		return nil
	}

	// 连败冷却：全资产压制新入场，已挂订单不受影响
	if e.risk != nil {
		riskSnap := e.risk.RiskSnapshot()
		if riskSnap.InCooldown(in.Now) {
			return nil
		}
	}

	if e.inBackoff(in.Now) {
		return nil
	}

	direction := domain.SpreadDirection(spread)

	// 高档位优先：强信号先评估，成交后立即压制低档位
	for _, tier := range in.Tiers.SortedHighestFirst() {
		key := placedKey(in.Asset, tier.Name, in.WindowKey)
		if e.isPlaced(key) {
			continue
		}
		if !tier.TimeGateOpen(in.SecondsInto) {
			continue
		}
		if abs < tier.SpreadThresholdPct {
			continue
		}
		if e.blocks.IsBlocked(in.Asset, tier.Name, in.Now) {
			continue
		}

		pos, err := e.placer.PlaceEntry(ctx, execution.Request{
			Asset:           in.Asset,
			WindowKey:       in.WindowKey,
			WindowEndUnix:   in.WindowEndUnix,
			Direction:       direction,
			Tier:            tier.Name,
			LimitPrice:      tier.LimitPrice,
			SizeUSD:         e.cfg.StakeUSD,
			SignedSpreadPct: spread,
		})
		if err != nil {
			if execution.IsInsufficientBalance(err) {
				// 挂单占用抵押品属正常现象，退避而不是报错
				e.startBackoff(in.Now)
				metrics.BalanceBackoffs.Add(1)
				log.Warnf("⏸️ 余额不足，下单退避 %s: asset=%s tier=%s",
					e.cfg.BalanceBackoff, in.Asset, tier.Name)
				return nil
			}
			metrics.OrdersFailed.Add(1)
			log.Errorf("❌ 下单失败: asset=%s tier=%s err=%v", in.Asset, tier.Name, err)
			if e.onError != nil {
				e.onError(in.Asset, err)
			}
			// 非瞬态失败不标记 placed：下一 tick 门通过时可重试
			continue
		}

		e.markPlaced(key)
		metrics.OrdersPlaced.Add(1)

		// 阻断所有更低档位
		if tier.BlocksLower {
			until := in.Now.Add(tier.BlockDuration)
			for _, lower := range in.Tiers.Lower(tier.Rank) {
				e.blocks.Block(in.Asset, lower.Name, until)
			}
		}

		log.Infof("🎯 档位触发: tier=%s asset=%s dir=%s spread=%.3f%% window=%s",
			tier.Name, in.Asset, direction, spread, in.WindowKey)
		if e.onPlaced != nil {
			e.onPlaced(pos)
		}
		return pos
	}
	return nil
}

// ForgetWindow 清理已翻转窗口的 placed key（防止 map 无界增长）
func (e *Evaluator) ForgetWindow(windowKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.placed {
		if strings.HasSuffix(k, "|"+windowKey) {
			delete(e.placed, k)
		}
	}
}

// InBackoff 当前是否处于余额退避
func (e *Evaluator) InBackoff(now time.Time) bool { return e.inBackoff(now) }

func (e *Evaluator) inBackoff(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Before(e.backoffUntil)
}

func (e *Evaluator) startBackoff(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if until := now.Add(e.cfg.BalanceBackoff); until.After(e.backoffUntil) {
		e.backoffUntil = until
	}
}

func (e *Evaluator) isPlaced(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.placed[key]
}

func (e *Evaluator) markPlaced(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.placed[key] = true
}
