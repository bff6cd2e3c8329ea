package domain

// Market 市场领域模型（一个 updown 窗口对应一个市场）。
type Market struct {
	Slug          string  // 市场 slug（{symbol}-updown-{tf}-{windowEndUnix}）
	UpAssetID     string  // UP token 资产 ID
	DownAssetID   string  // DOWN token 资产 ID
	ConditionID   string  // 条件 ID
	TickSize      float64 // 价格精度（0.1 / 0.01 / 0.001 / 0.0001）
	MinOrderSize  float64 // 最小 share 数量
	NegRisk       bool    // 是否为负风险市场
	WindowEndUnix int64   // 窗口结束时间（Unix 秒）

	// 结算信息（市场 resolve 后才有意义）
	Resolved       bool
	WinningOutcome Direction
}

// IsValid 验证市场是否有效（缺少隔离键的市场不允许进入交易路径）。
func (m *Market) IsValid() bool {
	return m != nil && m.Slug != "" && m.UpAssetID != "" && m.DownAssetID != "" && m.WindowEndUnix > 0
}

// AssetID 根据方向获取资产 ID。
func (m *Market) AssetID(dir Direction) string {
	if dir == DirectionUp {
		return m.UpAssetID
	}
	return m.DownAssetID
}

// Direction 买入方向（窗口收盘价相对开盘价的方向）。
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)
