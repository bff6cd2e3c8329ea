package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/spreadbot/clob/client"
	"github.com/betbot/spreadbot/clob/signing"
	"github.com/betbot/spreadbot/clob/types"
	"github.com/betbot/spreadbot/internal/controlplane"
	"github.com/betbot/spreadbot/internal/domain"
	"github.com/betbot/spreadbot/internal/engine"
	"github.com/betbot/spreadbot/internal/execution"
	"github.com/betbot/spreadbot/internal/feed"
	"github.com/betbot/spreadbot/internal/metrics"
	"github.com/betbot/spreadbot/internal/resolution"
	"github.com/betbot/spreadbot/internal/store"
	"github.com/betbot/spreadbot/pkg/config"
	"github.com/betbot/spreadbot/pkg/logger"
	"github.com/betbot/spreadbot/pkg/secretstore"
	"github.com/betbot/spreadbot/pkg/shutdown"
	"github.com/betbot/spreadbot/pkg/syncgroup"
	"github.com/betbot/spreadbot/pkg/wallet"
	"github.com/betbot/spreadbot/pkg/windowclock"
)

// statusSource 控制面 /api/status 的数据来源
type statusSource struct {
	feed     *feed.Feed
	resolver *resolution.Resolver
	assets   []string
}

func (s *statusSource) FeedLive() bool {
	for _, a := range s.assets {
		if s.feed.IsLive(a) {
			return true
		}
	}
	return false
}

func (s *statusSource) RiskSnapshot() domain.RiskState {
	return s.resolver.RiskSnapshot()
}

// loadPrivateKey 私钥来源优先级：配置/环境变量 > 助记词派生 > secretstore
func loadPrivateKey(cfg *config.Config) (string, error) {
	if cfg.Wallet.PrivateKey != "" {
		return cfg.Wallet.PrivateKey, nil
	}
	if cfg.Wallet.Mnemonic != "" {
		derived, err := wallet.FromMnemonic(cfg.Wallet.Mnemonic, cfg.Wallet.DerivationPath)
		if err != nil {
			return "", fmt.Errorf("助记词派生失败: %w", err)
		}
		return derived.PrivateKeyHex, nil
	}
	if cfg.SecretStore.Path != "" {
		key, err := secretstore.ParseKey(cfg.SecretStore.EncryptionKey)
		if err != nil {
			return "", fmt.Errorf("解析 secretstore 加密密钥失败: %w", err)
		}
		ss, err := secretstore.Open(secretstore.OpenOptions{
			Path:          cfg.SecretStore.Path,
			EncryptionKey: key,
			ReadOnly:      true,
		})
		if err != nil {
			return "", fmt.Errorf("打开 secretstore 失败: %w", err)
		}
		defer ss.Close()
		pk, found, err := ss.GetString("private_key")
		if err != nil {
			return "", err
		}
		if found && pk != "" {
			return pk, nil
		}
	}
	return "", fmt.Errorf("未找到私钥（配置 wallet.private_key / wallet.mnemonic 或 secretstore）")
}

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// .env 仅本地开发用，缺失不算错
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:          cfg.Log.Level,
		OutputFile:     cfg.Log.OutputFile,
		MaxSize:        cfg.Log.MaxSizeMB,
		MaxBackups:     cfg.Log.MaxBackups,
		MaxAge:         cfg.Log.MaxAgeDays,
		Compress:       cfg.Log.Compress,
		RotateByWindow: cfg.Log.RotateByWindow,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}

	privateKeyHex, err := loadPrivateKey(cfg)
	if err != nil {
		logger.Errorf("凭证加载失败: %v", err)
		os.Exit(1)
	}
	privateKey, err := signing.ParsePrivateKey(privateKeyHex)
	if err != nil {
		logger.Errorf("私钥解析失败: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- 交易所客户端 ----
	clob := client.New(cfg.Venue.ClobHost, types.Chain(cfg.Venue.ChainID), privateKey, nil, client.Options{
		FunderAddress:  cfg.Wallet.FunderAddress,
		SignatureType:  types.SignatureType(cfg.Wallet.SignatureType),
		RequestTimeout: time.Duration(cfg.Venue.RequestTimeoutSec) * time.Second,
	})
	if _, err := clob.DeriveApiKey(ctx, 0); err != nil {
		logger.Errorf("派生 API 密钥失败: %v", err)
		os.Exit(1)
	}
	gamma := client.NewGammaClient(time.Duration(cfg.Venue.RequestTimeoutSec) * time.Second)

	// ---- 持久层 ----
	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Errorf("打开数据库失败: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	// 配置文件中的档位表作为种子写入；之后热更新走控制面 PUT /api/tiers
	for asset, tiers := range cfg.Tiers {
		if err := st.UpsertTierConfig(asset, tiers); err != nil {
			logger.Errorf("写入档位种子失败: asset=%s err=%v", asset, err)
			os.Exit(1)
		}
	}

	// ---- 行情流 ----
	assetSymbols := make(map[string]string, len(cfg.Assets))
	assetNames := make([]string, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		assetSymbols[a.Symbol] = a.StreamSymbol
		assetNames = append(assetNames, a.Symbol)
	}
	priceFeed, err := feed.New(feed.Options{
		Assets:       assetSymbols,
		MaxSampleAge: time.Duration(cfg.Feed.MaxSampleAgeMs) * time.Millisecond,
		ProxyURL:     cfg.Feed.ProxyURL,
	})
	if err != nil {
		logger.Errorf("创建行情流失败: %v", err)
		os.Exit(1)
	}

	openBook := feed.NewOpenBook(priceFeed,
		time.Duration(cfg.Engine.OpenMaxAgeSec)*time.Second,
		time.Duration(cfg.Engine.OpenRetryForSec)*time.Second)
	openBook.OnSoftReset(func(asset string, windowEndUnix int64) {
		metrics.SoftResets.Add(1)
	})

	// ---- 风控与结算 ----
	riskState, err := st.LoadRisk()
	if err != nil {
		logger.Warnf("读取风控快照失败，使用零值: %v", err)
	}
	resolver := resolution.New(resolution.Config{
		PollInterval:    time.Duration(cfg.Resolution.PollIntervalSec) * time.Second,
		MaxWait:         time.Duration(cfg.Resolution.MaxWaitSec) * time.Second,
		LossStreakLimit: cfg.Resolution.LossStreakLimit,
		LossCooldown:    time.Duration(cfg.Resolution.LossCooldownSec) * time.Second,
	}, gamma, st, &riskState)
	resolver.SetFillChecker(clob)

	// 重启恢复：上次进程未结算的持仓重新交给结算器
	if pending, err := st.UnresolvedPositions(); err != nil {
		logger.Warnf("读取未结算持仓失败: %v", err)
	} else {
		for windowKey, positions := range pending {
			logger.Infof("🔄 恢复未结算窗口: %s positions=%d", windowKey, len(positions))
			resolver.Submit(windowKey, positions)
		}
	}

	// ---- 执行与评估 ----
	adapter := execution.NewAdapter(clob, gamma)
	blocks := engine.NewBlockState()
	evaluator := engine.NewEvaluator(engine.EvalConfig{
		FailsafeCeilingPct: cfg.Engine.FailsafeCeilingPct,
		GuardThresholdPct:  cfg.Engine.Guard.ThresholdPct,
		GuardWindowSec:     cfg.Engine.Guard.WindowSec,
		GuardCooldown:      time.Duration(cfg.Engine.Guard.CooldownSec) * time.Second,
		GuardGlobal:        cfg.Engine.Guard.Global,
		BalanceBackoff:     time.Duration(cfg.Engine.BalanceBackoffSec) * time.Second,
		StakeUSD:           cfg.Engine.StakeUSD,
	}, blocks, adapter)
	// 连败冷却由结算侧推进，评估侧消费
	evaluator.SetRiskGate(resolver)

	// 入场即落盘（结算时 resolver 覆盖同一行）
	evaluator.OnPlaced(func(pos *domain.Position) {
		if err := st.SavePosition(pos); err != nil {
			logger.Warnf("持仓落盘失败: %v", err)
		}
	})

	// ---- 决策循环 ----
	engineAssets := make([]engine.AssetConfig, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		clock, err := windowclock.New(a.Symbol, a.Timeframe, a.Kind)
		if err != nil {
			logger.Errorf("窗口时钟创建失败: asset=%s err=%v", a.Symbol, err)
			os.Exit(1)
		}
		engineAssets = append(engineAssets, engine.AssetConfig{Symbol: a.Symbol, Clock: clock})
	}
	eng := engine.New(engine.Config{
		Assets:       engineAssets,
		TickInterval: cfg.TickInterval(),
	}, priceFeed, openBook, evaluator, resolver, st)

	eng.OnRollover(func(prevWindowKey, nextWindowKey string) {
		adapter.Forget(prevWindowKey)
		if err := logger.RotateToWindow(nextWindowKey); err != nil {
			logger.Warnf("日志按窗口切换失败: %v", err)
		}
	})

	// ---- 控制面 / 指标 ----
	status := &statusSource{feed: priceFeed, resolver: resolver, assets: assetNames}
	cp := controlplane.NewServer(st, status)
	if _, err := cp.StartAsync(ctx, cfg.Server.ControlListen); err != nil {
		logger.Errorf("控制面启动失败: %v", err)
		os.Exit(1)
	}
	if _, err := metrics.StartAsync(ctx, cfg.Server.MetricsListen); err != nil {
		logger.Warnf("指标服务启动失败: %v", err)
	}

	// ---- 启动 ----
	priceFeed.Start(ctx)

	sg := syncgroup.New()
	sg.Add(func() { resolver.Run(ctx) })
	sg.Add(func() { st.RunRefresh(ctx, time.Duration(cfg.Store.RefreshIntervalSec)*time.Second) })
	sg.Add(func() { eng.Run(ctx) })
	sg.Run()

	sm := shutdown.NewManager()
	sm.OnShutdown(func(ctx context.Context) {
		// 只停循环，已挂限价单有意留在场内
		_ = priceFeed.Close()
	})

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigC
	logger.Infof("🛑 收到信号 %v，开始关闭", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	sm.Shutdown(shutdownCtx)
	sg.Wait()
	logger.Info("✅ 已退出")
}
