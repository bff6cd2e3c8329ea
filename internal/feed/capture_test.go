package feed

import (
	"testing"
	"time"

	"github.com/betbot/spreadbot/internal/domain"
)

// fakeSampler 固定返回一份样本（或无样本）
type fakeSampler struct {
	sample domain.PriceSample
	ok     bool
}

func (f *fakeSampler) Sample(asset string) (domain.PriceSample, bool) {
	return f.sample, f.ok
}

func TestOpenCaptureLive(t *testing.T) {
	start := time.Unix(1767000000, 0)
	end := start.Add(15 * time.Minute).Unix()

	sampler := &fakeSampler{
		sample: domain.PriceSample{Asset: "BTC", Price: 50000, ObservedAtMs: start.UnixMilli()},
		ok:     true,
	}
	book := NewOpenBook(sampler, 30*time.Second, 2*time.Minute)

	// 翻转当刻捕获 -> live
	book.Observe("BTC", end, start.Unix(), start)

	open, ok := book.WindowOpen("BTC")
	if !ok {
		t.Fatal("应已捕获开盘价")
	}
	if open.Provenance != ProvenanceLive {
		t.Errorf("provenance = %s, want live", open.Provenance)
	}
	if open.Price != 50000 {
		t.Errorf("price = %v, want 50000", open.Price)
	}

	// 开盘价只捕获一次：后续更高价格不覆盖
	sampler.sample.Price = 51000
	sampler.sample.ObservedAtMs = start.Add(10 * time.Second).UnixMilli()
	book.Observe("BTC", end, start.Unix(), start.Add(10*time.Second))
	open, _ = book.WindowOpen("BTC")
	if open.Price != 50000 {
		t.Errorf("开盘价被覆盖: %v", open.Price)
	}
}

func TestOpenCaptureRetried(t *testing.T) {
	start := time.Unix(1767000000, 0)
	end := start.Add(15 * time.Minute).Unix()

	sampler := &fakeSampler{}
	book := NewOpenBook(sampler, 30*time.Second, 2*time.Minute)

	// 前 20 秒无样本
	for i := 0; i < 20; i++ {
		book.Observe("BTC", end, start.Unix(), start.Add(time.Duration(i)*time.Second))
	}
	if _, ok := book.WindowOpen("BTC"); ok {
		t.Fatal("无样本不应有开盘价")
	}

	// 第 21 秒样本恢复 -> retried
	now := start.Add(21 * time.Second)
	sampler.sample = domain.PriceSample{Asset: "BTC", Price: 50100, ObservedAtMs: now.UnixMilli()}
	sampler.ok = true
	book.Observe("BTC", end, start.Unix(), now)

	open, ok := book.WindowOpen("BTC")
	if !ok {
		t.Fatal("重试后应捕获开盘价")
	}
	if open.Provenance != ProvenanceRetried {
		t.Errorf("provenance = %s, want retried", open.Provenance)
	}
}

// 重试窗口耗尽 -> soft reset 恰好一次，本窗口永远没有开盘价
func TestSoftResetExactlyOnce(t *testing.T) {
	start := time.Unix(1767000000, 0)
	end := start.Add(15 * time.Minute).Unix()

	sampler := &fakeSampler{}
	book := NewOpenBook(sampler, 30*time.Second, 2*time.Minute)

	resets := 0
	book.OnSoftReset(func(asset string, windowEndUnix int64) {
		resets++
		if asset != "BTC" || windowEndUnix != end {
			t.Errorf("soft reset 参数错误: %s %d", asset, windowEndUnix)
		}
	})

	// 重试窗口内不 reset
	book.Observe("BTC", end, start.Unix(), start.Add(time.Minute))
	if book.IsSoftReset("BTC", end) {
		t.Fatal("重试窗口内不应 reset")
	}

	// 到 2 分钟截止后 reset，后续 tick 不再重复
	for i := 0; i < 5; i++ {
		book.Observe("BTC", end, start.Unix(), start.Add(2*time.Minute+time.Duration(i)*time.Second))
	}
	if !book.IsSoftReset("BTC", end) {
		t.Fatal("应已 soft reset")
	}
	if resets != 1 {
		t.Fatalf("soft reset 应恰好一次, got %d", resets)
	}

	// reset 后样本恢复也不再捕获（本窗口作废）
	sampler.sample = domain.PriceSample{Asset: "BTC", Price: 50000, ObservedAtMs: start.Add(3 * time.Minute).UnixMilli()}
	sampler.ok = true
	book.Observe("BTC", end, start.Unix(), start.Add(3*time.Minute))
	if _, ok := book.WindowOpen("BTC"); ok {
		t.Fatal("soft reset 后不应再捕获开盘价")
	}

	// 窗口翻转后状态清空，新窗口正常捕获
	nextStart := start.Add(15 * time.Minute)
	nextEnd := nextStart.Add(15 * time.Minute).Unix()
	sampler.sample.ObservedAtMs = nextStart.UnixMilli()
	book.Observe("BTC", nextEnd, nextStart.Unix(), nextStart)
	if _, ok := book.WindowOpen("BTC"); !ok {
		t.Fatal("新窗口应重新捕获")
	}
	if book.IsSoftReset("BTC", nextEnd) {
		t.Fatal("soft reset 不应带入新窗口")
	}
}

// 超龄样本不能当开盘价（开盘价也遵守时效，只是阈值更宽）
func TestOpenRejectsStaleSample(t *testing.T) {
	start := time.Unix(1767000000, 0)
	end := start.Add(15 * time.Minute).Unix()

	sampler := &fakeSampler{
		// 样本是 5 分钟前的
		sample: domain.PriceSample{Asset: "BTC", Price: 49000, ObservedAtMs: start.Add(-5 * time.Minute).UnixMilli()},
		ok:     true,
	}
	book := NewOpenBook(sampler, 30*time.Second, 2*time.Minute)
	book.Observe("BTC", end, start.Unix(), start)

	if _, ok := book.WindowOpen("BTC"); ok {
		t.Fatal("超龄样本不应被当作开盘价")
	}
}
