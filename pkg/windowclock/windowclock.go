package windowclock

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Timeframe 表示窗口周期（用于 updown market slug）。
// 支持：5m / 15m / 1h
type Timeframe string

const (
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
)

func ParseTimeframe(v string) (Timeframe, error) {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "5m", "5min", "5mins", "5-minute", "5minutes":
		return Timeframe5m, nil
	case "15m", "15min", "15mins", "15-minute", "15minutes":
		return Timeframe15m, nil
	case "1h", "1hour", "1-hour", "60m", "60min", "60mins":
		return Timeframe1h, nil
	default:
		return "", fmt.Errorf("不支持的 timeframe: %q（支持: 5m/15m/1h）", v)
	}
}

func (t Timeframe) String() string { return string(t) }

func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return 1 * time.Hour
	default:
		// 未知值按 15m 处理，避免 panic（Validate 会兜底）
		return 15 * time.Minute
	}
}

// Clock 是纯函数的窗口时钟：同一 wall-clock 输入永远返回同一结果，
// 没有任何隐藏状态。其他组件通过缓存 WindowEndUnix 并做相等比较来检测
// “新窗口”。
type Clock struct {
	Symbol    string // e.g. "btc", "eth"
	Kind      string // e.g. "updown"
	Timeframe Timeframe
}

var symbolRe = regexp.MustCompile(`^[a-z0-9]+$`)

func New(symbol, timeframe, kind string) (Clock, error) {
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return Clock{}, err
	}
	s := strings.ToLower(strings.TrimSpace(symbol))
	if s == "" {
		s = "btc"
	}
	if !symbolRe.MatchString(s) {
		return Clock{}, fmt.Errorf("无效的 symbol: %q（仅允许小写字母/数字）", symbol)
	}
	k := strings.ToLower(strings.TrimSpace(kind))
	if k == "" {
		k = "updown"
	}
	return Clock{Symbol: s, Kind: k, Timeframe: tf}, nil
}

func (c Clock) Duration() time.Duration { return c.Timeframe.Duration() }

// WindowEndUnix 返回包含 now 的窗口的结束时间（Unix 秒）。
// 对齐公式：end = now - (now mod window) + window（按 Unix epoch 对齐，
// 与时区无关，保证多实例/重启后结果一致）。
func (c Clock) WindowEndUnix(now time.Time) int64 {
	w := int64(c.Duration().Seconds())
	u := now.Unix()
	return u - (u % w) + w
}

// WindowStartUnix 返回包含 now 的窗口的起始时间（Unix 秒）。
func (c Clock) WindowStartUnix(now time.Time) int64 {
	return c.WindowEndUnix(now) - int64(c.Duration().Seconds())
}

// SecondsInto 返回 now 距离窗口开始已经过的秒数（0 <= s < window）。
func (c Clock) SecondsInto(now time.Time) int {
	return int(now.Unix() - c.WindowStartUnix(now))
}

// MinutesLeft 返回窗口结束前剩余的整分钟数（向下取整）。
func (c Clock) MinutesLeft(now time.Time) int {
	return int(c.WindowEndUnix(now)-now.Unix()) / 60
}

// Slug 根据窗口结束时间生成确定性的市场标识。
// 约定：小写 symbol / kind / timeframe + 窗口结束 Unix 秒。
func (c Clock) Slug(windowEndUnix int64) string {
	return fmt.Sprintf("%s-%s-%s-%d", c.Symbol, c.Kind, c.Timeframe.String(), windowEndUnix)
}

// CurrentSlug 返回包含 now 的窗口的市场标识。
func (c Clock) CurrentSlug(now time.Time) string {
	return c.Slug(c.WindowEndUnix(now))
}

func (c Clock) SlugPrefix() string {
	return fmt.Sprintf("%s-%s-%s-", c.Symbol, c.Kind, c.Timeframe.String())
}

// NextWindowEndUnix 返回下一个窗口的结束时间。
func (c Clock) NextWindowEndUnix(windowEndUnix int64) int64 {
	return windowEndUnix + int64(c.Duration().Seconds())
}
