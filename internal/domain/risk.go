package domain

import "time"

// RiskState 资金与连败状态（sizing 变体使用）。
// 每笔已结算交易更新一次。注意：bankroll >= 0 不由本结构强制，
// 调用方必须在低于最小注额时停止交易。
type RiskState struct {
	BankrollCents     int64
	MaxBankrollCents  int64
	ConsecutiveLosses int
	CooldownUntil     time.Time

	// RollingResults 有界历史，最近一笔在前（true = win）。
	RollingResults []bool
	RollingLimit   int
}

// ApplySettlement 记录一笔结算结果并更新连败/冷却状态。
// lossStreakLimit <= 0 表示关闭连败冷却。
func (r *RiskState) ApplySettlement(won bool, pnlCents int64, now time.Time, lossStreakLimit int, cooldown time.Duration) {
	r.BankrollCents += pnlCents
	if r.BankrollCents > r.MaxBankrollCents {
		r.MaxBankrollCents = r.BankrollCents
	}

	if won {
		r.ConsecutiveLosses = 0
	} else {
		r.ConsecutiveLosses++
		if lossStreakLimit > 0 && r.ConsecutiveLosses >= lossStreakLimit {
			r.CooldownUntil = now.Add(cooldown)
		}
	}

	limit := r.RollingLimit
	if limit <= 0 {
		limit = 50
	}
	r.RollingResults = append([]bool{won}, r.RollingResults...)
	if len(r.RollingResults) > limit {
		r.RollingResults = r.RollingResults[:limit]
	}
}

// InCooldown 当前是否处于连败冷却（独立于档位阻断状态）。
func (r *RiskState) InCooldown(now time.Time) bool {
	return now.Before(r.CooldownUntil)
}

// RollingWinRate 滚动胜率（无样本时返回 0）。
func (r *RiskState) RollingWinRate() float64 {
	if len(r.RollingResults) == 0 {
		return 0
	}
	wins := 0
	for _, w := range r.RollingResults {
		if w {
			wins++
		}
	}
	return float64(wins) / float64(len(r.RollingResults))
}
