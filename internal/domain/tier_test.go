package domain

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func validTable() TierTable {
	return TierTable{
		{Name: "t1", Rank: 1, SpreadThresholdPct: 0.20, EntryNotBeforeSec: 60, EntryBeforeSec: 240, LimitPrice: 0.58, BlocksLower: false},
		{Name: "t2", Rank: 2, SpreadThresholdPct: 0.45, EntryNotBeforeSec: 90, EntryBeforeSec: 270, LimitPrice: 0.62, BlocksLower: true, BlockDuration: 90 * time.Second},
		{Name: "t3", Rank: 3, SpreadThresholdPct: 0.80, EntryNotBeforeSec: 120, LimitPrice: 0.68, BlocksLower: true, BlockDuration: 180 * time.Second},
	}
}

func TestTimeGateOpen(t *testing.T) {
	tier := Tier{Name: "t1", EntryNotBeforeSec: 60, EntryBeforeSec: 240}

	// 半开区间 [60, 240)
	cases := []struct {
		s    int
		want bool
	}{
		{59, false},
		{60, true},
		{239, true},
		{240, false},
	}
	for _, c := range cases {
		if got := tier.TimeGateOpen(c.s); got != c.want {
			t.Errorf("TimeGateOpen(%d) = %v, want %v", c.s, got, c.want)
		}
	}

	// EntryBeforeSec == 0 表示不设上界
	open := Tier{Name: "t", EntryNotBeforeSec: 30}
	if !open.TimeGateOpen(10000) {
		t.Error("无上界时间门应一直开放")
	}
}

func TestTierTableValidate(t *testing.T) {
	if err := validTable().Validate(); err != nil {
		t.Fatalf("合法档位表校验失败: %v", err)
	}

	// 空表
	if err := (TierTable{}).Validate(); err == nil {
		t.Error("空档位表应报错")
	}

	// rank 重复
	dup := validTable()
	dup[1].Rank = dup[0].Rank
	if err := dup.Validate(); err == nil {
		t.Error("rank 重复应报错")
	}

	// 阻断时长必须随档位严格递增
	flat := validTable()
	flat[2].BlockDuration = flat[1].BlockDuration
	if err := flat.Validate(); err == nil {
		t.Error("阻断时长不递增应报错")
	}

	// limit_price 必须在 (0,1) 内
	bad := validTable()
	bad[0].LimitPrice = 1.0
	if err := bad.Validate(); err == nil {
		t.Error("limit_price = 1.0 应报错")
	}
}

func TestSortedHighestFirst(t *testing.T) {
	sorted := validTable().SortedHighestFirst()
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Rank < sorted[i].Rank {
			t.Fatalf("排序错误: %v", sorted)
		}
	}
	// 原表不被改动
	tt := validTable()
	_ = tt.SortedHighestFirst()
	if tt[0].Name != "t1" {
		t.Error("SortedHighestFirst 不应修改原表")
	}
}

func TestLower(t *testing.T) {
	lower := validTable().Lower(3)
	if len(lower) != 2 {
		t.Fatalf("Lower(3) 应返回 2 档, got %d", len(lower))
	}
	for _, tier := range lower {
		if tier.Rank >= 3 {
			t.Errorf("Lower(3) 不应包含 rank=%d", tier.Rank)
		}
	}
	if got := validTable().Lower(1); len(got) != 0 {
		t.Errorf("Lower(1) 应为空, got %d", len(got))
	}
}

func TestTierYAMLBlockDuration(t *testing.T) {
	src := `
name: t2
rank: 2
spread_threshold_pct: 0.45
entry_not_before_sec: 90
entry_before_sec: 270
limit_price: 0.62
blocks_lower: true
block_duration: 90s
`
	var tier Tier
	if err := yaml.Unmarshal([]byte(src), &tier); err != nil {
		t.Fatalf("yaml 解析失败: %v", err)
	}
	if tier.BlockDuration != 90*time.Second {
		t.Errorf("BlockDuration = %v, want 90s", tier.BlockDuration)
	}
	if tier.SpreadThresholdPct != 0.45 {
		t.Errorf("SpreadThresholdPct = %v, want 0.45", tier.SpreadThresholdPct)
	}

	// 非法时长
	if err := yaml.Unmarshal([]byte("name: x\nblock_duration: 九十秒\n"), &tier); err == nil {
		t.Error("非法 block_duration 应报错")
	}
}

func TestRiskStateSettlement(t *testing.T) {
	now := time.Now()
	r := RiskState{BankrollCents: 10000}

	r.ApplySettlement(false, -3800, now, 3, 30*time.Minute)
	r.ApplySettlement(false, -3800, now, 3, 30*time.Minute)
	if r.InCooldown(now) {
		t.Error("2 连败不应触发冷却（limit=3）")
	}
	r.ApplySettlement(false, -3800, now, 3, 30*time.Minute)
	if !r.InCooldown(now) {
		t.Error("3 连败应触发冷却")
	}
	if r.BankrollCents != 10000-3*3800 {
		t.Errorf("BankrollCents = %d", r.BankrollCents)
	}

	// 获胜清零连败
	r.ApplySettlement(true, 6200, now, 3, 30*time.Minute)
	if r.ConsecutiveLosses != 0 {
		t.Errorf("胜后连败数应清零, got %d", r.ConsecutiveLosses)
	}
	if got := r.RollingWinRate(); got != 0.25 {
		t.Errorf("RollingWinRate = %v, want 0.25", got)
	}
}
