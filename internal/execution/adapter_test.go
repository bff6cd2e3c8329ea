package execution

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/betbot/spreadbot/clob/client"
	"github.com/betbot/spreadbot/clob/types"
	"github.com/betbot/spreadbot/internal/domain"
)

type fakeGateway struct {
	mu        sync.Mutex
	built     []*types.UserOrder
	postErr   error
	respErr   string
	lastOrder *types.SignedOrder
}

func (g *fakeGateway) BuildOrder(userOrder *types.UserOrder, opts *types.CreateOrderOptions) (*types.SignedOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.built = append(g.built, userOrder)
	return &types.SignedOrder{}, nil
}

func (g *fakeGateway) PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType) (*types.OrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastOrder = order
	if g.postErr != nil {
		return nil, g.postErr
	}
	if g.respErr != "" {
		return nil, errors.New(g.respErr)
	}
	return &types.OrderResponse{Success: true, OrderID: "0xabc"}, nil
}

type fakeMarkets struct {
	mu      sync.Mutex
	calls   int
	markets map[string]*client.GammaMarket
}

func (f *fakeMarkets) MarketBySlug(ctx context.Context, slug string) (*client.GammaMarket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, ok := f.markets[slug]
	if !ok {
		return nil, errors.New("未找到市场: " + slug)
	}
	return m, nil
}

func gammaFixture(slug string) *client.GammaMarket {
	return &client.GammaMarket{
		ConditionID:           "0xcond",
		Slug:                  slug,
		ClobTokenIDs:          `["111","222"]`,
		OrderPriceMinTickSize: 0.01,
		OrderMinSize:          5,
	}
}

func req(slug string) Request {
	return Request{
		Asset:           "BTC",
		WindowKey:       slug,
		WindowEndUnix:   1767000900,
		Direction:       domain.DirectionUp,
		Tier:            "t2",
		LimitPrice:      0.62,
		SizeUSD:         100,
		SignedSpreadPct: 0.4975,
	}
}

func TestPlaceEntry(t *testing.T) {
	slug := "btc-updown-15m-1767000900"
	gw := &fakeGateway{}
	mk := &fakeMarkets{markets: map[string]*client.GammaMarket{slug: gammaFixture(slug)}}
	a := NewAdapter(gw, mk)

	pos, err := a.PlaceEntry(context.Background(), req(slug))
	if err != nil {
		t.Fatalf("PlaceEntry 失败: %v", err)
	}
	if pos.OrderID != "0xabc" {
		t.Errorf("OrderID = %s", pos.OrderID)
	}
	if pos.Direction != domain.DirectionUp {
		t.Errorf("Direction = %s", pos.Direction)
	}

	gw.mu.Lock()
	order := gw.built[0]
	gw.mu.Unlock()
	if order.TokenID != "111" {
		t.Errorf("Up 方向应使用第一个 token, got %s", order.TokenID)
	}
	if order.Side != types.SideBuy {
		t.Error("入场只做买入")
	}
	// 100 USD / 0.62 = 161.29（向下取整到 2 位）
	if math.Abs(order.Size-161.29) > 1e-9 {
		t.Errorf("Size = %v, want 161.29", order.Size)
	}

	// 市场元数据按 slug 缓存：二次下单不再查询 gamma
	if _, err := a.PlaceEntry(context.Background(), req(slug)); err != nil {
		t.Fatal(err)
	}
	mk.mu.Lock()
	calls := mk.calls
	mk.mu.Unlock()
	if calls != 1 {
		t.Errorf("gamma 查询应只发生一次, got %d", calls)
	}

	// Forget 后重新解析
	a.Forget(slug)
	if _, err := a.PlaceEntry(context.Background(), req(slug)); err != nil {
		t.Fatal(err)
	}
	mk.mu.Lock()
	calls = mk.calls
	mk.mu.Unlock()
	if calls != 2 {
		t.Errorf("Forget 后应重新查询, got %d", calls)
	}
}

func TestPlaceEntryDown(t *testing.T) {
	slug := "btc-updown-15m-1767000900"
	gw := &fakeGateway{}
	mk := &fakeMarkets{markets: map[string]*client.GammaMarket{slug: gammaFixture(slug)}}
	a := NewAdapter(gw, mk)

	r := req(slug)
	r.Direction = domain.DirectionDown
	if _, err := a.PlaceEntry(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.built[0].TokenID != "222" {
		t.Errorf("Down 方向应使用第二个 token, got %s", gw.built[0].TokenID)
	}
}

func TestPlaceEntryBelowMinSize(t *testing.T) {
	slug := "btc-updown-15m-1767000900"
	gm := gammaFixture(slug)
	gm.OrderMinSize = 500 // 100 USD / 0.62 ≈ 161 shares < 500
	gw := &fakeGateway{}
	mk := &fakeMarkets{markets: map[string]*client.GammaMarket{slug: gm}}
	a := NewAdapter(gw, mk)

	_, err := a.PlaceEntry(context.Background(), req(slug))
	if !errors.Is(err, ErrBelowMinSize) {
		t.Fatalf("应返回 ErrBelowMinSize, got %v", err)
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.built) != 0 {
		t.Error("低于最小量不应构建订单")
	}
}

func TestPlaceEntryBalanceError(t *testing.T) {
	slug := "btc-updown-15m-1767000900"
	gw := &fakeGateway{respErr: "order rejected: not enough balance / allowance"}
	mk := &fakeMarkets{markets: map[string]*client.GammaMarket{slug: gammaFixture(slug)}}
	a := NewAdapter(gw, mk)

	_, err := a.PlaceEntry(context.Background(), req(slug))
	if err == nil {
		t.Fatal("应返回错误")
	}
	if !IsInsufficientBalance(err) {
		t.Fatalf("应识别为余额错误: %v", err)
	}
}

func TestIsInsufficientBalance(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrInsufficientBalance, true},
		{errors.New("not enough balance to place order"), true},
		{errors.New("Insufficient Balance"), true},
		{errors.New("invalid order: balance / allowance check failed"), true},
		{errors.New("http 500"), false},
	}
	for _, c := range cases {
		if got := IsInsufficientBalance(c.err); got != c.want {
			t.Errorf("IsInsufficientBalance(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestSharesFor(t *testing.T) {
	cases := []struct {
		size, price, want float64
	}{
		{100, 0.62, 161.29},
		{100, 0.5, 200},
		{10, 0.58, 17.24},
		{100, 0, 0}, // 坏价格
	}
	for _, c := range cases {
		if got := sharesFor(c.size, c.price); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("sharesFor(%v, %v) = %v, want %v", c.size, c.price, got, c.want)
		}
	}
}
