package execution

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/spreadbot/clob/client"
	"github.com/betbot/spreadbot/clob/types"
	"github.com/betbot/spreadbot/internal/domain"
)

var log = logrus.WithField("component", "execution")

// Request 一次入场委托
type Request struct {
	Asset           string // 标的符号（BTC / ETH...）
	WindowKey       string // 市场 slug（隔离键）
	WindowEndUnix   int64
	Direction       domain.Direction
	Tier            string
	LimitPrice      float64 // 概率限价（未对齐 tick）
	SizeUSD         float64 // 名义金额
	SignedSpreadPct float64 // 触发时的带符号价差（记录用）
}

// OrderGateway 下单通道（由 *client.Client 实现）
type OrderGateway interface {
	BuildOrder(userOrder *types.UserOrder, opts *types.CreateOrderOptions) (*types.SignedOrder, error)
	PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType) (*types.OrderResponse, error)
}

// MarketSource 市场元数据来源（由 *client.GammaClient 实现）
type MarketSource interface {
	MarketBySlug(ctx context.Context, slug string) (*client.GammaMarket, error)
}

// Adapter 把档位触发转换成交易所 GTC 限价单。
// 市场元数据按 slug 缓存（每个窗口一个 slug，窗口翻转后由 Forget 清理）。
type Adapter struct {
	gateway OrderGateway
	markets MarketSource

	mu    sync.Mutex
	cache map[string]*domain.Market
}

func NewAdapter(gateway OrderGateway, markets MarketSource) *Adapter {
	return &Adapter{
		gateway: gateway,
		markets: markets,
		cache:   make(map[string]*domain.Market),
	}
}

// ResolveMarket 解析窗口对应的市场（带缓存）
func (a *Adapter) ResolveMarket(ctx context.Context, slug string, windowEndUnix int64) (*domain.Market, error) {
	a.mu.Lock()
	if m, ok := a.cache[slug]; ok {
		a.mu.Unlock()
		return m, nil
	}
	a.mu.Unlock()

	gm, err := a.markets.MarketBySlug(ctx, slug)
	if err != nil {
		return nil, errors.Wrapf(err, "解析市场失败: %s", slug)
	}

	up, down, err := gm.TokenIDs()
	if err != nil {
		return nil, errors.Wrapf(err, "市场 token 解析失败: %s", slug)
	}

	m := &domain.Market{
		Slug:          slug,
		UpAssetID:     up,
		DownAssetID:   down,
		ConditionID:   gm.ConditionID,
		TickSize:      gm.OrderPriceMinTickSize,
		MinOrderSize:  gm.OrderMinSize,
		NegRisk:       gm.NegRisk,
		WindowEndUnix: windowEndUnix,
	}
	if !m.IsValid() {
		return nil, errors.Errorf("市场数据不完整: %s", slug)
	}

	a.mu.Lock()
	a.cache[slug] = m
	a.mu.Unlock()
	return m, nil
}

// Forget 丢弃已翻转窗口的市场缓存
func (a *Adapter) Forget(slug string) {
	a.mu.Lock()
	delete(a.cache, slug)
	a.mu.Unlock()
}

// PlaceEntry 提交入场限价单（GTC）。
// 余额/授权不足返回可用 IsInsufficientBalance 识别的错误；
// 其余错误视为本次触发失败，不产生任何持仓或阻断状态。
func (a *Adapter) PlaceEntry(ctx context.Context, req Request) (*domain.Position, error) {
	market, err := a.ResolveMarket(ctx, req.WindowKey, req.WindowEndUnix)
	if err != nil {
		return nil, err
	}

	tick := client.TickSizeFromFloat(market.TickSize)

	price, err := client.RoundPriceToTick(req.LimitPrice, tick)
	if err != nil {
		return nil, err
	}

	shares := sharesFor(req.SizeUSD, price)
	if shares < market.MinOrderSize {
		return nil, errors.Wrapf(ErrBelowMinSize,
			"size=%.2f price=%.4f shares=%.2f min=%.2f", req.SizeUSD, price, shares, market.MinOrderSize)
	}

	userOrder := &types.UserOrder{
		TokenID: market.AssetID(req.Direction),
		Price:   price,
		Size:    shares,
		Side:    types.SideBuy,
	}
	opts := &types.CreateOrderOptions{TickSize: tick, NegRisk: market.NegRisk}

	signed, err := a.gateway.BuildOrder(userOrder, opts)
	if err != nil {
		return nil, errors.Wrap(err, "构建订单失败")
	}

	resp, err := a.gateway.PostOrder(ctx, signed, types.OrderTypeGTC)
	if err != nil {
		if IsInsufficientBalance(err) {
			return nil, errors.Wrap(ErrInsufficientBalance, err.Error())
		}
		return nil, err
	}

	now := time.Now()
	pos := domain.NewPosition(
		req.Tier, req.Asset, req.WindowKey, req.Direction,
		domain.PriceFromDecimal(price), req.SizeUSD, shares,
		resp.OrderID, req.SignedSpreadPct, now,
	)

	log.Infof("✅ 入场挂单成功: tier=%s asset=%s dir=%s price=%.4f shares=%.2f order=%s",
		req.Tier, req.Asset, req.Direction, price, shares, resp.OrderID)
	return pos, nil
}

// sharesFor 名义金额折算 share 数量（向下取整到 2 位小数，交易所要求）
func sharesFor(sizeUSD, price float64) float64 {
	if price <= 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(sizeUSD).
		Div(decimal.NewFromFloat(price)).
		RoundDown(2).
		Float64()
	return f
}
