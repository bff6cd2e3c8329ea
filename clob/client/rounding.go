package client

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/spreadbot/clob/types"
)

// RoundConfig 各字段的小数位数要求（随市场 tick size 变化）
type RoundConfig struct {
	Price  int32
	Size   int32
	Amount int32
}

// roundingByTick tick size -> 舍入配置
var roundingByTick = map[types.TickSize]RoundConfig{
	types.TickSize01:    {Price: 1, Size: 2, Amount: 3},
	types.TickSize001:   {Price: 2, Size: 2, Amount: 4},
	types.TickSize0001:  {Price: 3, Size: 2, Amount: 5},
	types.TickSize00001: {Price: 4, Size: 2, Amount: 6},
}

// RoundingFor 返回 tick size 对应的舍入配置
func RoundingFor(tick types.TickSize) (RoundConfig, error) {
	rc, ok := roundingByTick[tick]
	if !ok {
		return RoundConfig{}, errors.Errorf("不支持的 tick size: %s", tick)
	}
	return rc, nil
}

// RoundPriceToTick 限价对齐到 tick 精度（四舍五入），并夹在 (0, 1) 开区间内。
func RoundPriceToTick(price float64, tick types.TickSize) (float64, error) {
	rc, err := RoundingFor(tick)
	if err != nil {
		return 0, err
	}
	d := decimal.NewFromFloat(price).Round(rc.Price)

	step := decimal.RequireFromString(string(tick))
	one := decimal.NewFromInt(1)
	if d.LessThan(step) {
		d = step
	}
	if max := one.Sub(step); d.GreaterThan(max) {
		d = max
	}
	f, _ := d.Float64()
	return f, nil
}

// orderAmounts 计算签名用的 maker/taker 数量（USDC 6 位精度的整数单位）。
// 买单：maker 付 USDC、taker 收 token；卖单反之，且卖单 token 最多 2 位小数、
// USDC 最多 4 位小数。
func orderAmounts(side types.Side, size, price float64, rc RoundConfig) (maker, taker decimal.Decimal) {
	p := decimal.NewFromFloat(price).Round(rc.Price)

	if side == types.SideBuy {
		taker = decimal.NewFromFloat(size).RoundDown(rc.Size)
		maker = taker.Mul(p)
		if int32(-maker.Exponent()) > rc.Amount {
			maker = maker.RoundUp(rc.Amount + 4)
			if int32(-maker.Exponent()) > rc.Amount {
				maker = maker.RoundDown(rc.Amount)
			}
		}
		return maker, taker
	}

	maker = decimal.NewFromFloat(size).RoundDown(rc.Size)
	if int32(-maker.Exponent()) > 2 {
		maker = maker.RoundDown(2)
	}
	taker = maker.Mul(p)
	if int32(-taker.Exponent()) > 4 {
		taker = taker.RoundDown(4)
	}
	return maker, taker
}

// toUnits 转为 10^decimals 整数单位（向下取整）
func toUnits(d decimal.Decimal, decimals int32) decimal.Decimal {
	return d.Shift(decimals).Floor()
}
