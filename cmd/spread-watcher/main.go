package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/spreadbot/internal/domain"
	"github.com/betbot/spreadbot/internal/feed"
	"github.com/betbot/spreadbot/pkg/config"
	"github.com/betbot/spreadbot/pkg/windowclock"
)

// spread-watcher：只看不下单。订阅同一条 Binance 行情流，按资产显示
// 窗口开盘价、当前价、带符号价差和各档位的触发状态，用来在实盘前
// 人工核对档位配置。

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	upStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("2")) // 绿色

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	firedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11")) // 黄色
)

type tickMsg time.Time

// assetView 单个资产的一行观测数据
type assetView struct {
	symbol string
	clock  windowclock.Clock
	tiers  domain.TierTable
}

type model struct {
	feed     *feed.Feed
	openBook *feed.OpenBook
	assets   []assetView

	now time.Time
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.now = time.Time(msg)
		for _, a := range m.assets {
			windowEnd := a.clock.WindowEndUnix(m.now)
			windowStart := a.clock.WindowStartUnix(m.now)
			m.openBook.Observe(a.symbol, windowEnd, windowStart, m.now)
		}
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("spread-watcher（只读）"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(m.now.Format("15:04:05")))
	b.WriteString("\n\n")

	for _, a := range m.assets {
		b.WriteString(borderStyle.Render(m.renderAsset(a)))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("q 退出"))
	b.WriteString("\n")
	return b.String()
}

func (m model) renderAsset(a assetView) string {
	var b strings.Builder

	windowEnd := a.clock.WindowEndUnix(m.now)
	secondsInto := a.clock.SecondsInto(m.now)
	slug := a.clock.Slug(windowEnd)

	b.WriteString(titleStyle.Render(a.symbol))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(slug))
	b.WriteString(fmt.Sprintf("  s=%d 剩余%d分钟\n", secondsInto, a.clock.MinutesLeft(m.now)))

	current, haveCurrent := m.feed.CurrentPrice(a.symbol)
	open, haveOpen := m.openBook.WindowOpen(a.symbol)

	switch {
	case !haveCurrent:
		b.WriteString(downStyle.Render("⚠️ 无新鲜行情（无信号）"))
		b.WriteString("\n")
	case !haveOpen:
		b.WriteString(dimStyle.Render(fmt.Sprintf("当前 %.2f  开盘价未捕获（重试中或已放弃）", current)))
		b.WriteString("\n")
	default:
		spread := domain.SignedSpreadPct(current, open.Price)
		style := upStyle
		if spread < 0 {
			style = downStyle
		}
		b.WriteString(fmt.Sprintf("开盘 %.2f (%s)  当前 %.2f  价差 %s\n",
			open.Price, open.Provenance, current,
			style.Render(fmt.Sprintf("%+.3f%%", spread))))

		for _, tier := range a.tiers.SortedHighestFirst() {
			abs := spread
			if abs < 0 {
				abs = -abs
			}
			gateOpen := tier.TimeGateOpen(secondsInto)
			hit := abs >= tier.SpreadThresholdPct

			line := fmt.Sprintf("  %-8s 阈值%.2f%% 时间门[%d,%d)",
				tier.Name, tier.SpreadThresholdPct, tier.EntryNotBeforeSec, tier.EntryBeforeSec)
			switch {
			case hit && gateOpen:
				b.WriteString(firedStyle.Render(line + "  ← 满足"))
			case hit:
				b.WriteString(dimStyle.Render(line + "  （阈值已到，时间门关闭）"))
			default:
				b.WriteString(dimStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	assetSymbols := make(map[string]string, len(cfg.Assets))
	for _, a := range cfg.Assets {
		assetSymbols[a.Symbol] = a.StreamSymbol
	}
	priceFeed, err := feed.New(feed.Options{
		Assets:       assetSymbols,
		MaxSampleAge: time.Duration(cfg.Feed.MaxSampleAgeMs) * time.Millisecond,
		ProxyURL:     cfg.Feed.ProxyURL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建行情流失败: %v\n", err)
		os.Exit(1)
	}

	openBook := feed.NewOpenBook(priceFeed,
		time.Duration(cfg.Engine.OpenMaxAgeSec)*time.Second,
		time.Duration(cfg.Engine.OpenRetryForSec)*time.Second)

	views := make([]assetView, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		clock, err := windowclock.New(a.Symbol, a.Timeframe, a.Kind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "窗口时钟创建失败: %v\n", err)
			os.Exit(1)
		}
		views = append(views, assetView{
			symbol: a.Symbol,
			clock:  clock,
			tiers:  cfg.Tiers[a.Symbol],
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	priceFeed.Start(ctx)
	defer priceFeed.Close()

	p := tea.NewProgram(model{
		feed:     priceFeed,
		openBook: openBook,
		assets:   views,
		now:      time.Now(),
	})
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI 运行失败: %v\n", err)
		os.Exit(1)
	}
}
