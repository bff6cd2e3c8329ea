package domain

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Tier 一个入场档位：阈值 / 时间门 / 限价 的组合，代表一档入场信心。
// 档位按 Rank 全序排列：Rank 越大 = 要求的价差越大 / 入场越晚 / 信心越高。
type Tier struct {
	Name               string  `yaml:"name" json:"name"`
	Rank               int     `yaml:"rank" json:"rank"`
	SpreadThresholdPct float64 `yaml:"spread_threshold_pct" json:"spread_threshold_pct"` // 最小 |带符号价差| 要求
	EntryNotBeforeSec  int     `yaml:"entry_not_before_sec" json:"entry_not_before_sec"` // 窗口内最早入场秒数
	EntryBeforeSec     int     `yaml:"entry_before_sec" json:"entry_before_sec"`         // 窗口内最晚入场秒数（0 = 不限）
	LimitPrice         float64 `yaml:"limit_price" json:"limit_price"`                   // 挂单限价（概率 0-1）

	// 阻断：本档成交后，把所有 Rank 更低的档位阻断 BlockDuration。
	BlocksLower   bool          `yaml:"blocks_lower" json:"blocks_lower"`
	BlockDuration time.Duration `yaml:"-" json:"block_duration"`
}

// tierYAML yaml 视图：block_duration 接受 "90s" / "5m" 等时长字符串。
type tierYAML struct {
	Name               string  `yaml:"name"`
	Rank               int     `yaml:"rank"`
	SpreadThresholdPct float64 `yaml:"spread_threshold_pct"`
	EntryNotBeforeSec  int     `yaml:"entry_not_before_sec"`
	EntryBeforeSec     int     `yaml:"entry_before_sec"`
	LimitPrice         float64 `yaml:"limit_price"`
	BlocksLower        bool    `yaml:"blocks_lower"`
	BlockDuration      string  `yaml:"block_duration"`
}

func (t *Tier) UnmarshalYAML(value *yaml.Node) error {
	var raw tierYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*t = Tier{
		Name:               raw.Name,
		Rank:               raw.Rank,
		SpreadThresholdPct: raw.SpreadThresholdPct,
		EntryNotBeforeSec:  raw.EntryNotBeforeSec,
		EntryBeforeSec:     raw.EntryBeforeSec,
		LimitPrice:         raw.LimitPrice,
		BlocksLower:        raw.BlocksLower,
	}
	if raw.BlockDuration != "" {
		d, err := time.ParseDuration(raw.BlockDuration)
		if err != nil {
			return fmt.Errorf("tier %s: block_duration 无效: %w", raw.Name, err)
		}
		t.BlockDuration = d
	}
	return nil
}

// TimeGateOpen 检查窗口内秒数是否落在 [EntryNotBeforeSec, EntryBeforeSec) 内。
func (t Tier) TimeGateOpen(secondsInto int) bool {
	if secondsInto < t.EntryNotBeforeSec {
		return false
	}
	if t.EntryBeforeSec > 0 && secondsInto >= t.EntryBeforeSec {
		return false
	}
	return true
}

func (t Tier) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tier name 不能为空")
	}
	if t.SpreadThresholdPct <= 0 {
		return fmt.Errorf("tier %s: spread_threshold_pct 必须 > 0", t.Name)
	}
	if t.LimitPrice <= 0 || t.LimitPrice >= 1 {
		return fmt.Errorf("tier %s: limit_price 必须在 (0,1) 内", t.Name)
	}
	if t.EntryNotBeforeSec < 0 {
		return fmt.Errorf("tier %s: entry_not_before_sec 必须 >= 0", t.Name)
	}
	if t.EntryBeforeSec != 0 && t.EntryBeforeSec <= t.EntryNotBeforeSec {
		return fmt.Errorf("tier %s: entry_before_sec 必须大于 entry_not_before_sec", t.Name)
	}
	if t.BlocksLower && t.BlockDuration <= 0 {
		return fmt.Errorf("tier %s: blocks_lower 需要 block_duration > 0", t.Name)
	}
	return nil
}

// TierTable 一个资产的全部档位。
type TierTable []Tier

// SortedHighestFirst 返回按 Rank 从高到低排序的副本。
// 高档位代表更大更罕见的行情，必须先评估：先到的强信号立即压制
// 同窗口内的弱信号，避免弱档位抢跑后把强信号锁在门外。
func (tt TierTable) SortedHighestFirst() TierTable {
	out := make(TierTable, len(tt))
	copy(out, tt)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank > out[j].Rank })
	return out
}

// Lower 返回 Rank 严格低于 rank 的档位。
func (tt TierTable) Lower(rank int) TierTable {
	var out TierTable
	for _, t := range tt {
		if t.Rank < rank {
			out = append(out, t)
		}
	}
	return out
}

func (tt TierTable) Validate() error {
	if len(tt) == 0 {
		return fmt.Errorf("tier table 不能为空")
	}
	seen := make(map[string]bool, len(tt))
	ranks := make(map[int]bool, len(tt))
	for _, t := range tt {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return fmt.Errorf("tier 名称重复: %s", t.Name)
		}
		if ranks[t.Rank] {
			return fmt.Errorf("tier rank 重复: %d", t.Rank)
		}
		seen[t.Name] = true
		ranks[t.Rank] = true
	}
	// 阻断时长必须随档位严格递增（高信心档位阻断更久）
	sorted := tt.SortedHighestFirst()
	var prev time.Duration = -1
	for i := len(sorted) - 1; i >= 0; i-- {
		t := sorted[i]
		if !t.BlocksLower {
			continue
		}
		if prev >= 0 && t.BlockDuration <= prev {
			return fmt.Errorf("tier %s: block_duration 必须随档位递增", t.Name)
		}
		prev = t.BlockDuration
	}
	return nil
}
