package feed

import (
	"sync"
	"time"

	"github.com/betbot/spreadbot/internal/domain"
)

// Provenance 开盘价来源标注。
type Provenance string

const (
	ProvenanceLive        Provenance = "live"        // 窗口翻转当刻捕获
	ProvenanceRetried     Provenance = "retried"     // 翻转后的某次 tick 重试捕获
	ProvenanceUnavailable Provenance = "unavailable" // 重试窗口耗尽，soft reset
)

// OpenCapture 某窗口的开盘参考价。
type OpenCapture struct {
	Price         float64
	Provenance    Provenance
	WindowEndUnix int64
	CapturedAt    time.Time
}

// Sampler 最近样本读取接口（由 *Feed 实现；测试注入假实现）。
type Sampler interface {
	Sample(asset string) (domain.PriceSample, bool)
}

type openState struct {
	windowEndUnix int64
	capture       *OpenCapture
	softReset     bool // 本窗口已执行过 soft reset（每窗口至多一次）
}

// OpenBook 管理每个资产“当前窗口开盘价”的捕获与重试。
//
// 语义：
//   - 窗口翻转时尝试用新鲜样本捕获开盘价；
//   - 捕获一次后本窗口内不再覆盖；
//   - 不可用则每个 tick 重试，最长 RetryFor；
//   - 超时仍不可用 -> soft reset：清空捕获、记录状态、本窗口禁止交易。
//     这是刻意的 no signal, no trade 保护，不是故障。
type OpenBook struct {
	sampler Sampler

	// MaxOpenAge：可用作开盘价的样本最大年龄。比 CurrentPrice 的阈值
	// 宽：开盘价只需“接近窗口起点”，不要求亚秒级新鲜。
	maxOpenAge time.Duration
	retryFor   time.Duration

	mu      sync.Mutex
	byAsset map[string]*openState

	onSoftReset func(asset string, windowEndUnix int64) // 可选回调（记录/计数）
}

func NewOpenBook(sampler Sampler, maxOpenAge, retryFor time.Duration) *OpenBook {
	if maxOpenAge <= 0 {
		maxOpenAge = 30 * time.Second
	}
	if retryFor <= 0 {
		retryFor = 2 * time.Minute
	}
	return &OpenBook{
		sampler:    sampler,
		maxOpenAge: maxOpenAge,
		retryFor:   retryFor,
		byAsset:    make(map[string]*openState),
	}
}

// OnSoftReset 注册 soft reset 回调（best-effort 日志/持久化用）。
func (b *OpenBook) OnSoftReset(fn func(asset string, windowEndUnix int64)) {
	b.mu.Lock()
	b.onSoftReset = fn
	b.mu.Unlock()
}

// Observe 每个 tick 调用一次：处理窗口翻转、捕获、重试与 soft reset。
// windowStart 用于界定重试截止（start + RetryFor）。
func (b *OpenBook) Observe(asset string, windowEndUnix, windowStartUnix int64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.byAsset[asset]
	if st == nil || st.windowEndUnix != windowEndUnix {
		// 新窗口：旧捕获整体作废
		st = &openState{windowEndUnix: windowEndUnix}
		b.byAsset[asset] = st
	}

	if st.capture != nil || st.softReset {
		return // 开盘价只捕获一次；soft reset 后本窗口不再尝试
	}

	if s, ok := b.sampler.Sample(asset); ok && s.Usable(now, b.maxOpenAge) {
		prov := ProvenanceRetried
		// 翻转后第一个 tick 内拿到的按 live 记
		if now.Unix()-windowStartUnix <= 3 {
			prov = ProvenanceLive
		}
		st.capture = &OpenCapture{
			Price:         s.Price,
			Provenance:    prov,
			WindowEndUnix: windowEndUnix,
			CapturedAt:    now,
		}
		log.Infof("📌 捕获开盘价: asset=%s price=%.2f provenance=%s window=%d", asset, s.Price, prov, windowEndUnix)
		return
	}

	// 重试窗口耗尽 -> soft reset（每窗口恰好一次）
	if now.Unix() >= windowStartUnix+int64(b.retryFor.Seconds()) {
		st.softReset = true
		log.Warnf("🚫 开盘价不可用，soft reset: asset=%s window=%d（本窗口跳过交易）", asset, windowEndUnix)
		if b.onSoftReset != nil {
			b.onSoftReset(asset, windowEndUnix)
		}
	}
}

// WindowOpen 返回资产当前窗口的开盘价。
func (b *OpenBook) WindowOpen(asset string) (OpenCapture, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.byAsset[asset]
	if st == nil || st.capture == nil {
		return OpenCapture{}, false
	}
	return *st.capture, true
}

// IsSoftReset 当前窗口是否已 soft reset（true = 本窗口禁止交易）。
func (b *OpenBook) IsSoftReset(asset string, windowEndUnix int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.byAsset[asset]
	return st != nil && st.windowEndUnix == windowEndUnix && st.softReset
}
