package domain

import (
	"math"
	"time"
)

// Price 限价值对象（固定精度：1e-4）。
//
// Polymarket 的 tick size 可能为 0.1 / 0.01 / 0.001 / 0.0001。
// 为了让策略/执行层不丢精度，这里使用 1e-4 作为内部最小单位（pips）：
//   - 1 pip  = 0.0001
//   - 100 pips = 0.01（1 cent）
//   - 10000 pips = 1.0
type Price struct {
	Pips int
}

// ToDecimal 转换为小数（例如 6000 pips = 0.6000）。
func (p Price) ToDecimal() float64 {
	return float64(p.Pips) / 10000.0
}

// ToCents 返回“分（0.01）口径”的整数（用于日志/阈值换算）。
func (p Price) ToCents() int {
	return int(math.Round(float64(p.Pips) / 100.0))
}

// PriceFromDecimal 从小数创建价格（四舍五入到 1e-4）。
func PriceFromDecimal(decimal float64) Price {
	return Price{Pips: int(math.Round(decimal * 10000))}
}

// IsValid 有效限价必须落在 (0, 1) 开区间内。
func (p Price) IsValid() bool {
	return p.Pips > 0 && p.Pips < 10000
}

// PriceSample 参考价格样本（来自行情流，覆盖式写入 per-asset cell）。
type PriceSample struct {
	Asset        string
	Price        float64
	ObservedAtMs int64
}

// AgeMs 返回样本相对 now 的年龄（毫秒）。
func (s PriceSample) AgeMs(now time.Time) int64 {
	return now.UnixMilli() - s.ObservedAtMs
}

// Usable 样本可用：价格为正且未超过最大年龄。
// 过期样本按“无信号”处理，绝不当作 last known good。
func (s PriceSample) Usable(now time.Time, maxAge time.Duration) bool {
	return s.Price > 0 && s.AgeMs(now) <= maxAge.Milliseconds()
}

// SignedSpreadPct 计算带符号价差百分比：(current-open)/current*100。
// 分母用 current（而不是 open），与历史实现保持一致；对价格整体
// 缩放不敏感（等比放大 current/open 结果不变）。
func SignedSpreadPct(current, open float64) float64 {
	if current == 0 {
		return 0
	}
	return (current - open) / current * 100
}

// SpreadDirection 由带符号价差推导方向（>= 0 为 up）。
func SpreadDirection(signedSpreadPct float64) Direction {
	if signedSpreadPct >= 0 {
		return DirectionUp
	}
	return DirectionDown
}
