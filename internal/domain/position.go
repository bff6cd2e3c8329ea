package domain

import (
	"time"

	"github.com/google/uuid"
)

// Position 一次成功挂单产生的持仓记录。
// 所有权：创建后由 Decision Loop 独占，窗口翻转时整体移交给 Resolution，
// 二者永远不会并发修改同一条记录。
type Position struct {
	ID        string
	Tier      string
	Asset     string
	WindowKey string // 市场 slug（{symbol}-updown-{tf}-{windowEndUnix}）
	Direction Direction
	Limit     Price   // 挂单限价（概率）
	Size      float64 // 名义金额（USDC）
	Shares    float64 // 实际 share 数量
	OrderID   string

	SignedSpreadAtEntry float64
	EnteredAt           time.Time

	// Resolution 写入
	Outcome    Outcome
	PnLCents   int64
	ResolvedAt *time.Time
}

// Outcome 结算结果。
type Outcome string

const (
	OutcomeOpen Outcome = ""     // 未结算
	OutcomeWin  Outcome = "win"  // 方向判断正确
	OutcomeLoss Outcome = "loss" // 方向判断错误
	OutcomeVoid Outcome = "void" // 无法判定（市场未 resolve 且无结算价）
)

// NewPosition 创建持仓记录（生成 uuid）。
func NewPosition(tier, asset, windowKey string, dir Direction, limit Price, size, shares float64, orderID string, spreadPct float64, now time.Time) *Position {
	return &Position{
		ID:                  uuid.NewString(),
		Tier:                tier,
		Asset:               asset,
		WindowKey:           windowKey,
		Direction:           dir,
		Limit:               limit,
		Size:                size,
		Shares:              shares,
		OrderID:             orderID,
		SignedSpreadAtEntry: spreadPct,
		EnteredAt:           now,
	}
}

// IsResolved 是否已结算。
func (p *Position) IsResolved() bool {
	return p != nil && p.ResolvedAt != nil
}
