package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/betbot/spreadbot/internal/domain"
)

// WalletConfig 钱包凭证来源。
// PrivateKey 与 Mnemonic 二选一；都为空时尝试从 secretstore 读取。
type WalletConfig struct {
	PrivateKey     string `yaml:"private_key"`
	Mnemonic       string `yaml:"mnemonic"`
	DerivationPath string `yaml:"derivation_path"`
	FunderAddress  string `yaml:"funder_address"`
	SignatureType  int    `yaml:"signature_type"` // 0=EOA 1=Magic 2=GnosisSafe
}

// SecretStoreConfig badger 加密 KV 配置
type SecretStoreConfig struct {
	Path          string `yaml:"path"`
	EncryptionKey string `yaml:"encryption_key"` // hex/base64，空 = 不加密
}

// VenueConfig 交易所接入配置
type VenueConfig struct {
	ClobHost          string `yaml:"clob_host"`
	ChainID           int    `yaml:"chain_id"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

// AssetConfig 被跟踪的标的
type AssetConfig struct {
	Symbol       string `yaml:"symbol"`        // BTC
	StreamSymbol string `yaml:"stream_symbol"` // btcusdt（Binance 流订阅名）
	Timeframe    string `yaml:"timeframe"`     // 5m / 15m / 1h
	Kind         string `yaml:"kind"`          // 市场类型，默认 updown
}

// FeedConfig 行情流配置
type FeedConfig struct {
	MaxSampleAgeMs int    `yaml:"max_sample_age_ms"` // 超龄样本按无信号处理
	ProxyURL       string `yaml:"proxy_url"`
}

// GuardConfig early-guard 熔断配置
type GuardConfig struct {
	ThresholdPct float64 `yaml:"threshold_pct"`
	WindowSec    int     `yaml:"window_sec"`
	CooldownSec  int     `yaml:"cooldown_sec"`
	Global       bool    `yaml:"global"`
}

// EngineConfig 决策循环配置
type EngineConfig struct {
	TickIntervalMs     int         `yaml:"tick_interval_ms"`
	StakeUSD           float64     `yaml:"stake_usd"`
	FailsafeCeilingPct float64     `yaml:"failsafe_ceiling_pct"`
	BalanceBackoffSec  int         `yaml:"balance_backoff_sec"`
	Guard              GuardConfig `yaml:"guard"`

	// 开盘价捕获
	OpenMaxAgeSec   int `yaml:"open_max_age_sec"`
	OpenRetryForSec int `yaml:"open_retry_for_sec"`
}

// ResolutionConfig 结算配置
type ResolutionConfig struct {
	PollIntervalSec int `yaml:"poll_interval_sec"`
	MaxWaitSec      int `yaml:"max_wait_sec"`
	LossStreakLimit int `yaml:"loss_streak_limit"`
	LossCooldownSec int `yaml:"loss_cooldown_sec"`
}

// StoreConfig sqlite 配置
type StoreConfig struct {
	DBPath             string `yaml:"db_path"`
	RefreshIntervalSec int    `yaml:"refresh_interval_sec"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level          string `yaml:"level"`
	OutputFile     string `yaml:"output_file"`
	MaxSizeMB      int    `yaml:"max_size_mb"`
	MaxBackups     int    `yaml:"max_backups"`
	MaxAgeDays     int    `yaml:"max_age_days"`
	Compress       bool   `yaml:"compress"`
	RotateByWindow bool   `yaml:"rotate_by_window"`
}

// ServerConfig 控制面/指标监听地址
type ServerConfig struct {
	ControlListen string `yaml:"control_listen"`
	MetricsListen string `yaml:"metrics_listen"`
}

// Config 完整配置
type Config struct {
	Wallet      WalletConfig                 `yaml:"wallet"`
	SecretStore SecretStoreConfig            `yaml:"secretstore"`
	Venue       VenueConfig                  `yaml:"venue"`
	Assets      []AssetConfig                `yaml:"assets"`
	Feed        FeedConfig                   `yaml:"feed"`
	Engine      EngineConfig                 `yaml:"engine"`
	Resolution  ResolutionConfig             `yaml:"resolution"`
	Store       StoreConfig                  `yaml:"store"`
	Log         LogConfig                    `yaml:"log"`
	Server      ServerConfig                 `yaml:"server"`
	Tiers       map[string]domain.TierTable  `yaml:"tiers"` // asset -> 档位表（启动种子，之后以 sqlite 为准）
}

// Load 读取 yaml 配置文件，再用环境变量覆盖敏感项，最后补默认值并校验。
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 敏感项允许环境变量覆盖（部署时不落盘）
func (c *Config) applyEnv() {
	c.Wallet.PrivateKey = getEnv("SPREADBOT_PRIVATE_KEY", c.Wallet.PrivateKey)
	c.Wallet.Mnemonic = getEnv("SPREADBOT_MNEMONIC", c.Wallet.Mnemonic)
	c.Wallet.FunderAddress = getEnv("SPREADBOT_FUNDER_ADDRESS", c.Wallet.FunderAddress)
	c.SecretStore.Path = getEnv("SPREADBOT_SECRETSTORE_PATH", c.SecretStore.Path)
	c.SecretStore.EncryptionKey = getEnv("SPREADBOT_SECRETSTORE_KEY", c.SecretStore.EncryptionKey)
	c.Venue.ClobHost = getEnv("SPREADBOT_CLOB_HOST", c.Venue.ClobHost)
	c.Store.DBPath = getEnv("SPREADBOT_DB_PATH", c.Store.DBPath)
	c.Engine.StakeUSD = parseFloatEnv("SPREADBOT_STAKE_USD", c.Engine.StakeUSD)
}

// ApplyDefaults 补默认值
func (c *Config) ApplyDefaults() {
	if c.Venue.ClobHost == "" {
		c.Venue.ClobHost = "https://clob.polymarket.com"
	}
	if c.Venue.ChainID == 0 {
		c.Venue.ChainID = 137
	}
	if c.Venue.RequestTimeoutSec <= 0 {
		c.Venue.RequestTimeoutSec = 30
	}
	if c.Feed.MaxSampleAgeMs <= 0 {
		c.Feed.MaxSampleAgeMs = 10000
	}
	if c.Engine.TickIntervalMs <= 0 {
		c.Engine.TickIntervalMs = 1000
	}
	if c.Engine.FailsafeCeilingPct <= 0 {
		c.Engine.FailsafeCeilingPct = 10
	}
	if c.Engine.BalanceBackoffSec <= 0 {
		c.Engine.BalanceBackoffSec = 120
	}
	if c.Engine.Guard.CooldownSec <= 0 {
		c.Engine.Guard.CooldownSec = 600
	}
	if c.Engine.OpenMaxAgeSec <= 0 {
		c.Engine.OpenMaxAgeSec = 30
	}
	if c.Engine.OpenRetryForSec <= 0 {
		c.Engine.OpenRetryForSec = 120
	}
	if c.Resolution.PollIntervalSec <= 0 {
		c.Resolution.PollIntervalSec = 15
	}
	if c.Resolution.MaxWaitSec <= 0 {
		c.Resolution.MaxWaitSec = 1800
	}
	if c.Resolution.LossCooldownSec <= 0 {
		c.Resolution.LossCooldownSec = 900
	}
	if c.Store.DBPath == "" {
		c.Store.DBPath = "data/spreadbot.db"
	}
	if c.Store.RefreshIntervalSec <= 0 {
		c.Store.RefreshIntervalSec = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Server.ControlListen == "" {
		c.Server.ControlListen = ":8080"
	}
	if c.Server.MetricsListen == "" {
		c.Server.MetricsListen = ":6060"
	}
	for i := range c.Assets {
		if c.Assets[i].Kind == "" {
			c.Assets[i].Kind = "updown"
		}
		if c.Assets[i].StreamSymbol == "" {
			c.Assets[i].StreamSymbol = strings.ToLower(c.Assets[i].Symbol) + "usdt"
		}
	}
}

// Validate 配置校验
func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("至少配置一个 asset")
	}
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("asset symbol 不能为空")
		}
		if a.Timeframe == "" {
			return fmt.Errorf("asset %s: timeframe 不能为空", a.Symbol)
		}
	}
	if c.Engine.StakeUSD <= 0 {
		return fmt.Errorf("engine.stake_usd 必须 > 0")
	}
	for asset, tiers := range c.Tiers {
		if err := tiers.Validate(); err != nil {
			return fmt.Errorf("tiers[%s]: %w", asset, err)
		}
	}
	return nil
}

// TickInterval 便捷换算
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickIntervalMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
