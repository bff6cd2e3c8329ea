package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
venue:
  chain_id: 137

assets:
  - symbol: BTC
    timeframe: 15m
  - symbol: ETH
    stream_symbol: ethusdt
    timeframe: 1h

engine:
  stake_usd: 100
  guard:
    threshold_pct: 1.0
    window_sec: 30

tiers:
  BTC:
    - name: t1
      rank: 1
      spread_threshold_pct: 0.20
      entry_not_before_sec: 60
      entry_before_sec: 240
      limit_price: 0.58
    - name: t2
      rank: 2
      spread_threshold_pct: 0.45
      entry_not_before_sec: 90
      entry_before_sec: 270
      limit_price: 0.62
      blocks_lower: true
      block_duration: 90s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	// 默认值
	if cfg.Venue.ClobHost != "https://clob.polymarket.com" {
		t.Errorf("ClobHost = %s", cfg.Venue.ClobHost)
	}
	if cfg.Feed.MaxSampleAgeMs != 10000 {
		t.Errorf("MaxSampleAgeMs = %d", cfg.Feed.MaxSampleAgeMs)
	}
	if cfg.TickInterval() != time.Second {
		t.Errorf("TickInterval = %v", cfg.TickInterval())
	}
	if cfg.Engine.FailsafeCeilingPct != 10 {
		t.Errorf("FailsafeCeilingPct = %v", cfg.Engine.FailsafeCeilingPct)
	}
	if cfg.Engine.Guard.CooldownSec != 600 {
		t.Errorf("Guard.CooldownSec = %d", cfg.Engine.Guard.CooldownSec)
	}

	// 资产默认值：kind 与 stream symbol 推导
	if cfg.Assets[0].Kind != "updown" || cfg.Assets[0].StreamSymbol != "btcusdt" {
		t.Errorf("asset 默认值: %+v", cfg.Assets[0])
	}
	if cfg.Assets[1].StreamSymbol != "ethusdt" {
		t.Errorf("显式 stream_symbol 不应被覆盖: %+v", cfg.Assets[1])
	}

	// 档位表随 block_duration 解析
	tiers := cfg.Tiers["BTC"]
	if len(tiers) != 2 {
		t.Fatalf("tiers = %d", len(tiers))
	}
	if tiers[1].BlockDuration != 90*time.Second {
		t.Errorf("BlockDuration = %v", tiers[1].BlockDuration)
	}
}

func TestLoadValidation(t *testing.T) {
	// 无资产
	if _, err := Load(writeConfig(t, "engine:\n  stake_usd: 100\n")); err == nil {
		t.Error("无 assets 应报错")
	}

	// stake 缺失
	noStake := `
assets:
  - symbol: BTC
    timeframe: 15m
`
	if _, err := Load(writeConfig(t, noStake)); err == nil {
		t.Error("stake_usd 缺失应报错")
	}

	// 非法档位表
	badTiers := `
assets:
  - symbol: BTC
    timeframe: 15m
engine:
  stake_usd: 100
tiers:
  BTC:
    - name: t1
      rank: 1
      spread_threshold_pct: 0.2
      limit_price: 1.5
`
	if _, err := Load(writeConfig(t, badTiers)); err == nil {
		t.Error("非法档位表应报错")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPREADBOT_PRIVATE_KEY", "0xdeadbeef")
	t.Setenv("SPREADBOT_STAKE_USD", "250")
	t.Setenv("SPREADBOT_DB_PATH", "/tmp/override.db")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Wallet.PrivateKey != "0xdeadbeef" {
		t.Errorf("PrivateKey = %s", cfg.Wallet.PrivateKey)
	}
	if cfg.Engine.StakeUSD != 250 {
		t.Errorf("StakeUSD = %v", cfg.Engine.StakeUSD)
	}
	if cfg.Store.DBPath != "/tmp/override.db" {
		t.Errorf("DBPath = %s", cfg.Store.DBPath)
	}
}
