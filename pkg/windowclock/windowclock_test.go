package windowclock

import (
	"testing"
	"testing/quick"
	"time"
)

func mustClock(t *testing.T, symbol, tf string) Clock {
	t.Helper()
	c, err := New(symbol, tf, "updown")
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	return c
}

// TestWindowEndAlignment 验证对齐公式 end = now - (now mod w) + w
func TestWindowEndAlignment(t *testing.T) {
	c := mustClock(t, "btc", "15m")

	// 2026-01-05 10:07:30 UTC -> 窗口结束应为 10:15:00
	now := time.Date(2026, 1, 5, 10, 7, 30, 0, time.UTC)
	end := c.WindowEndUnix(now)
	want := time.Date(2026, 1, 5, 10, 15, 0, 0, time.UTC).Unix()
	if end != want {
		t.Errorf("WindowEndUnix = %d, want %d", end, want)
	}

	// 整点边界：10:15:00 本身属于下一个窗口（end = 10:30）
	boundary := time.Date(2026, 1, 5, 10, 15, 0, 0, time.UTC)
	if got := c.WindowEndUnix(boundary); got != want+900 {
		t.Errorf("边界时刻 WindowEndUnix = %d, want %d", got, want+900)
	}
}

// TestDeterminism 相同输入必须产生相同输出（无隐藏状态）
func TestDeterminism(t *testing.T) {
	c := mustClock(t, "eth", "5m")
	now := time.Unix(1765985400, 0)
	for i := 0; i < 3; i++ {
		if c.CurrentSlug(now) != c.CurrentSlug(now) {
			t.Fatal("CurrentSlug 对相同输入返回了不同结果")
		}
	}
	if got, want := c.CurrentSlug(now), c.Slug(c.WindowEndUnix(now)); got != want {
		t.Errorf("CurrentSlug = %s, want %s", got, want)
	}
}

// TestSecondsInto SecondsInto + 剩余时间应恰好等于窗口时长
func TestSecondsInto(t *testing.T) {
	c := mustClock(t, "btc", "15m")
	now := time.Date(2026, 1, 5, 10, 7, 30, 0, time.UTC)
	if got := c.SecondsInto(now); got != 450 {
		t.Errorf("SecondsInto = %d, want 450", got)
	}
	if got := c.MinutesLeft(now); got != 7 {
		t.Errorf("MinutesLeft = %d, want 7", got)
	}
}

// TestProperty_WindowInvariants 对任意时刻：
// start <= now < end，且 end-start == 窗口时长，且时钟单调。
func TestProperty_WindowInvariants(t *testing.T) {
	c := mustClock(t, "btc", "15m")
	w := int64(c.Duration().Seconds())

	property := func(unixSec int64) bool {
		if unixSec < 0 {
			unixSec = -unixSec
		}
		now := time.Unix(unixSec%4102444800, 0) // 2100 年之前
		end := c.WindowEndUnix(now)
		start := c.WindowStartUnix(now)
		if end-start != w {
			return false
		}
		if now.Unix() < start || now.Unix() >= end {
			return false
		}
		// 单调：1 秒后窗口结束时间不减
		if c.WindowEndUnix(now.Add(time.Second)) < end {
			return false
		}
		return true
	}

	if err := quick.Check(property, &quick.Config{MaxCount: 500}); err != nil {
		t.Errorf("属性测试失败: %v", err)
	}
}

func TestSlugFormat(t *testing.T) {
	c := mustClock(t, "btc", "15m")
	if got, want := c.Slug(1765985400), "btc-updown-15m-1765985400"; got != want {
		t.Errorf("Slug = %s, want %s", got, want)
	}
	if got, want := c.SlugPrefix(), "btc-updown-15m-"; got != want {
		t.Errorf("SlugPrefix = %s, want %s", got, want)
	}
}

func TestParseTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"5m": Timeframe5m, "15min": Timeframe15m, "1hour": Timeframe1h, "60m": Timeframe1h,
	}
	for in, want := range cases {
		got, err := ParseTimeframe(in)
		if err != nil || got != want {
			t.Errorf("ParseTimeframe(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseTimeframe("4h"); err == nil {
		t.Error("ParseTimeframe(4h) 应该失败")
	}
	if _, err := New("BTC!", "15m", "updown"); err == nil {
		t.Error("非法 symbol 应该失败")
	}
}
