package resolution

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/spreadbot/clob/client"
	"github.com/betbot/spreadbot/clob/types"
	"github.com/betbot/spreadbot/internal/domain"
	"github.com/betbot/spreadbot/internal/metrics"
)

var log = logrus.WithField("component", "resolution")

// MarketChecker 市场结算状态查询（由 *client.GammaClient 实现）
type MarketChecker interface {
	MarketBySlug(ctx context.Context, slug string) (*client.GammaMarket, error)
}

// FillChecker 订单成交量确认（由 *client.Client 实现）。
// 结算前查询实际成交 share 数：盈亏只按 size_matched 计，
// 零成交的挂单按 void 落盘。未注入时按请求数量全额结算。
type FillChecker interface {
	GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error)
}

// Recorder 结算结果落盘（store 层实现）。全部 best-effort：
// 写失败只记日志，绝不阻塞结算路径。
type Recorder interface {
	SavePosition(pos *domain.Position) error
	SaveRisk(risk domain.RiskState) error
}

// Config Resolver 参数
type Config struct {
	PollInterval time.Duration // 轮询市场 resolve 状态的间隔
	MaxWait      time.Duration // 超过后按 void 结算（市场卡住不能永远占着 worker）
	LossStreakLimit int
	LossCooldown    time.Duration
}

type batch struct {
	windowKey string
	positions []*domain.Position
}

// Resolver 窗口结算器。
// Engine 在窗口翻转时移交持仓，此后这些持仓归 Resolver 独占；
// 同一 windowKey 重复提交会被去重（结算恰好一次）。
type Resolver struct {
	cfg      Config
	markets  MarketChecker
	recorder Recorder
	fills    FillChecker

	riskMu sync.Mutex
	risk   *domain.RiskState

	mu       sync.Mutex
	accepted map[string]bool // windowKey -> 在途（结算完成后释放）
	queue    chan batch

	onSettled func(pos *domain.Position)
}

func New(cfg Config, markets MarketChecker, recorder Recorder, risk *domain.RiskState) *Resolver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Minute
	}
	return &Resolver{
		cfg:      cfg,
		markets:  markets,
		recorder: recorder,
		risk:     risk,
		accepted: make(map[string]bool),
		queue:    make(chan batch, 64),
	}
}

// OnSettled 注册结算回调（指标/日志）
func (r *Resolver) OnSettled(fn func(pos *domain.Position)) { r.onSettled = fn }

// SetFillChecker 注入成交量确认来源
func (r *Resolver) SetFillChecker(fc FillChecker) { r.fills = fc }

// Submit 接收一个窗口的持仓。幂等：同一 windowKey 只接收一次。
func (r *Resolver) Submit(windowKey string, positions []*domain.Position) {
	if len(positions) == 0 {
		return
	}
	r.mu.Lock()
	if r.accepted[windowKey] {
		r.mu.Unlock()
		log.Warnf("⚠️ 窗口重复提交，忽略: %s", windowKey)
		return
	}
	r.accepted[windowKey] = true
	r.mu.Unlock()

	select {
	case r.queue <- batch{windowKey: windowKey, positions: positions}:
	default:
		// 队列打满说明结算严重滞后，丢弃前撤销接收标记
		r.mu.Lock()
		delete(r.accepted, windowKey)
		r.mu.Unlock()
		log.Errorf("❌ 结算队列已满，丢弃窗口: %s", windowKey)
	}
}

// Run 结算 worker，阻塞直到 ctx 取消
func (r *Resolver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-r.queue:
			r.settleWindow(ctx, b)
		}
	}
}

// settleWindow 轮询市场直到 resolve（或超时按 void），然后结算全部持仓
func (r *Resolver) settleWindow(ctx context.Context, b batch) {
	deadline := time.Now().Add(r.cfg.MaxWait)
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		gm, err := r.markets.MarketBySlug(ctx, b.windowKey)
		if err == nil {
			if idx, ok := gm.WinningOutcomeIndex(); ok {
				winning := domain.DirectionUp
				if idx == 1 {
					winning = domain.DirectionDown
				}
				r.settleAll(ctx, b, winning, false)
				r.forget(b.windowKey)
				return
			}
		} else {
			log.Warnf("⚠️ 查询市场结算状态失败: window=%s err=%v", b.windowKey, err)
		}

		if time.Now().After(deadline) {
			log.Warnf("⏱️ 市场超时未 resolve，按 void 结算: %s", b.windowKey)
			r.settleAll(ctx, b, "", true)
			r.forget(b.windowKey)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// settleAll 对窗口内全部持仓计算盈亏并更新风控状态
func (r *Resolver) settleAll(ctx context.Context, b batch, winning domain.Direction, void bool) {
	now := time.Now()
	metrics.WindowsSettled.Add(1)
	for _, pos := range b.positions {
		if pos.IsResolved() {
			continue
		}

		// 挂单可能只吃到部分量：盈亏按实际成交 share 计
		shares := pos.Shares
		filled := true
		if !void && pos.OrderID != "" && r.fills != nil {
			if m, ok := r.matchedShares(ctx, pos.OrderID); ok {
				switch {
				case m <= 0:
					filled = false
					log.Infof("🚫 挂单零成交，按 void 落盘: id=%s tier=%s window=%s",
						pos.ID, pos.Tier, b.windowKey)
				case m < shares:
					log.Infof("📌 部分成交: id=%s 请求 %.2f 实成 %.2f", pos.ID, shares, m)
					shares = m
				}
			}
		}

		switch {
		case void || !filled:
			pos.Outcome = domain.OutcomeVoid
			pos.PnLCents = 0
		case pos.Direction == winning:
			pos.Outcome = domain.OutcomeWin
			pos.PnLCents = winPnLCents(pos.Limit, shares)
			metrics.SettleWins.Add(1)
		default:
			pos.Outcome = domain.OutcomeLoss
			pos.PnLCents = lossPnLCents(pos.Limit, shares)
			metrics.SettleLosses.Add(1)
		}
		t := now
		pos.ResolvedAt = &t

		if !void && filled && r.risk != nil {
			r.riskMu.Lock()
			r.risk.ApplySettlement(pos.Outcome == domain.OutcomeWin, pos.PnLCents, now,
				r.cfg.LossStreakLimit, r.cfg.LossCooldown)
			risk := *r.risk
			r.riskMu.Unlock()
			if r.recorder != nil {
				if err := r.recorder.SaveRisk(risk); err != nil {
					log.Warnf("⚠️ 保存风控状态失败: %v", err)
				}
			}
		}

		if r.recorder != nil {
			if err := r.recorder.SavePosition(pos); err != nil {
				log.Warnf("⚠️ 保存持仓失败: id=%s err=%v", pos.ID, err)
			}
		}

		log.Infof("💰 结算: tier=%s asset=%s dir=%s outcome=%s pnl=%+.2f USD window=%s",
			pos.Tier, pos.Asset, pos.Direction, pos.Outcome, float64(pos.PnLCents)/100, b.windowKey)
		if r.onSettled != nil {
			r.onSettled(pos)
		}
	}
}

// matchedShares 查询订单实际成交 share 数。
// 查询失败按全额成交处理——宁可多记盈亏也不能漏结算。
func (r *Resolver) matchedShares(ctx context.Context, orderID string) (float64, bool) {
	order, err := r.fills.GetOrder(ctx, orderID)
	if err != nil {
		log.Warnf("⚠️ 查询订单成交量失败: orderID=%s err=%v", orderID, err)
		return 0, false
	}
	m, err := strconv.ParseFloat(order.SizeMatched, 64)
	if err != nil {
		log.Warnf("⚠️ 解析成交量失败: orderID=%s size_matched=%q", orderID, order.SizeMatched)
		return 0, false
	}
	return m, true
}

// forget 结算完成后释放窗口去重标记。
// 已结算持仓带 ResolvedAt，误重提交会被 settleAll 跳过。
func (r *Resolver) forget(windowKey string) {
	r.mu.Lock()
	delete(r.accepted, windowKey)
	r.mu.Unlock()
}

// winPnLCents 获胜：每 share 结算价 1.0，收益 = (1 - limit) * shares
func winPnLCents(limit domain.Price, shares float64) int64 {
	return int64(math.Round((1 - limit.ToDecimal()) * shares * 100))
}

// lossPnLCents 落败：share 归零，损失 = limit * shares
func lossPnLCents(limit domain.Price, shares float64) int64 {
	return -int64(math.Round(limit.ToDecimal() * shares * 100))
}

// RiskSnapshot 当前风控状态快照（状态页用）
func (r *Resolver) RiskSnapshot() domain.RiskState {
	r.riskMu.Lock()
	defer r.riskMu.Unlock()
	if r.risk == nil {
		return domain.RiskState{}
	}
	return *r.risk
}
