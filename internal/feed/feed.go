package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/betbot/spreadbot/internal/domain"
	"github.com/betbot/spreadbot/internal/metrics"
	"github.com/betbot/spreadbot/pkg/sigchan"
)

var log = logrus.WithField("component", "price_feed")

const (
	reconnectCoolDown = 2 * time.Second
	pingInterval      = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 10 * time.Second

	// silenceTimeout：连接报告 open 但超过此时长没有任何数据消息，
	// 按“假活连接”处理：强制断开并重连。心跳 ack 不算数据。
	silenceTimeout = 45 * time.Second
)

// ConnState 重连状态机状态。
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn 是 feed 用到的最小连接接口（便于测试注入假 transport）。
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	WriteJSON(v interface{}) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer 拨号接口。生产实现为 binanceDialer；测试注入假实现。
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// binanceDialer 连接 Binance U 本位合约的组合流。
type binanceDialer struct {
	wsURL    string
	proxyURL string
}

func (d *binanceDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	if d.proxyURL != "" {
		if p, err := url.Parse(d.proxyURL); err == nil {
			dialer.Proxy = http.ProxyURL(p)
		}
	}
	conn, _, err := dialer.DialContext(ctx, d.wsURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options 价格流配置。
type Options struct {
	// Assets: 资产名 -> Binance 合约 symbol（如 "btc" -> "btcusdt"）。
	Assets map[string]string

	// MaxSampleAge：CurrentPrice 允许的最大样本年龄。
	MaxSampleAge time.Duration

	ProxyURL string

	// Dialer 可选：测试注入。为空时使用 Binance 组合流。
	Dialer Dialer
}

// Feed 维护一条到行情源的长连接，把每个资产的最新价写入覆盖式的
// per-asset cell。写入方（读循环）与读取方（tick 循环）接触的是独立
// 的 cell，靠时效检查而不是互斥来保证正确性，读到略旧的样本是允许的。
type Feed struct {
	opts    Options
	symbols map[string]string // stream symbol -> asset

	mu    sync.RWMutex
	cells map[string]domain.PriceSample // asset -> 最新样本

	reconnectC   *sigchan.Chan // 信号驱动的重连通知（缓冲 1 = 去重）
	closeC       chan struct{}
	closeOnce    sync.Once
	reconnecting sync.Mutex // 防止并发 dial

	stateMu sync.RWMutex
	state   ConnState

	lastDataMu sync.RWMutex
	lastDataAt time.Time

	connMu sync.Mutex
	conn   Conn

	dialer Dialer
}

func New(opts Options) (*Feed, error) {
	if len(opts.Assets) == 0 {
		return nil, fmt.Errorf("feed: 至少需要一个资产")
	}
	if opts.MaxSampleAge <= 0 {
		opts.MaxSampleAge = 10 * time.Second
	}
	symbols := make(map[string]string, len(opts.Assets))
	streams := make([]string, 0, len(opts.Assets))
	for asset, sym := range opts.Assets {
		s := strings.ToLower(strings.TrimSpace(sym))
		if s == "" {
			return nil, fmt.Errorf("feed: 资产 %s 缺少 symbol", asset)
		}
		symbols[s] = asset
		streams = append(streams, fmt.Sprintf("%s@kline_1s", s))
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &binanceDialer{
			wsURL:    "wss://fstream.binance.com/stream?streams=" + strings.Join(streams, "/"),
			proxyURL: opts.ProxyURL,
		}
	}

	return &Feed{
		opts:       opts,
		symbols:    symbols,
		cells:      make(map[string]domain.PriceSample, len(opts.Assets)),
		reconnectC: sigchan.New(1),
		closeC:     make(chan struct{}),
		dialer:     dialer,
		state:      StateDisconnected,
	}, nil
}

// Start 启动连接与守护 goroutine（非阻塞）。
func (f *Feed) Start(ctx context.Context) {
	go f.reconnector(ctx)
	go f.silenceWatchdog(ctx)
	f.requestReconnect()
}

// Close 关闭 feed（幂等）。
func (f *Feed) Close() error {
	f.closeOnce.Do(func() { close(f.closeC) })
	f.connMu.Lock()
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()
	f.setState(StateDisconnected)
	return nil
}

// State 返回当前连接状态（诊断用）。
func (f *Feed) State() ConnState {
	f.stateMu.RLock()
	defer f.stateMu.RUnlock()
	return f.state
}

func (f *Feed) setState(s ConnState) {
	f.stateMu.Lock()
	f.state = s
	f.stateMu.Unlock()
}

// IsLive 连接已建立且最近收到过数据。
func (f *Feed) IsLive(asset string) bool {
	if f.State() != StateConnected {
		return false
	}
	_, ok := f.CurrentPrice(asset)
	return ok
}

// CurrentPrice 返回资产的当前价。样本超龄按“无信号”处理（返回 !ok），
// 绝不退化成 last known good。
func (f *Feed) CurrentPrice(asset string) (float64, bool) {
	s, ok := f.Sample(asset)
	if !ok {
		return 0, false
	}
	if !s.Usable(time.Now(), f.opts.MaxSampleAge) {
		return 0, false
	}
	return s.Price, true
}

// Sample 返回最近一次样本（不做时效过滤，供开盘价捕获用更宽的阈值）。
func (f *Feed) Sample(asset string) (domain.PriceSample, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.cells[asset]
	return s, ok
}

// requestReconnect 触发重连（非阻塞；缓冲打满时丢弃，并发请求自动去重）。
func (f *Feed) requestReconnect() {
	f.reconnectC.Emit()
}

// reconnector 重连器 goroutine（信号驱动）。
func (f *Feed) reconnector(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.closeC:
			return
		case <-f.reconnectC.C():
		}

		if err := f.dialAndRun(ctx); err != nil {
			log.Warnf("行情连接失败: %v，%s 后重试", err, reconnectCoolDown)
			select {
			case <-time.After(reconnectCoolDown):
				f.requestReconnect()
			case <-f.closeC:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// dialAndRun 建立连接并启动读/ping 循环。reconnecting 互斥保证任一时刻
// 只有一次 in-flight 拨号。
func (f *Feed) dialAndRun(ctx context.Context) error {
	f.reconnecting.Lock()
	defer f.reconnecting.Unlock()

	select {
	case <-f.closeC:
		return fmt.Errorf("feed 已关闭")
	default:
	}

	f.setState(StateConnecting)
	conn, err := f.dialer.Dial(ctx)
	if err != nil {
		f.setState(StateDisconnected)
		return err
	}

	f.connMu.Lock()
	if f.conn != nil {
		_ = f.conn.Close()
	}
	f.conn = conn
	f.connMu.Unlock()

	f.markData() // 连接起点：给 watchdog 一个基准，避免刚连上就判静默
	f.setState(StateConnected)
	log.Infof("✅ 行情流已连接: assets=%d", len(f.opts.Assets))

	connCtx, cancel := context.WithCancel(ctx)
	go f.ping(connCtx, conn, cancel)
	go func() {
		defer cancel()
		f.readLoop(connCtx, conn)
	}()
	return nil
}

func (f *Feed) ping(ctx context.Context, conn Conn, cancel context.CancelFunc) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.closeC:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Warnf("发送 PING 失败: %v，触发重连", err)
				_ = conn.Close()
				f.onDisconnected()
				return
			}
		}
	}
}

func (f *Feed) readLoop(ctx context.Context, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.closeC:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				continue // 超时只用于周期性检查 ctx
			}
			select {
			case <-f.closeC:
				return
			default:
			}
			log.Warnf("行情读取错误: %v，触发重连", err)
			_ = conn.Close()
			f.onDisconnected()
			return
		}
		f.handleMessage(msg)
	}
}

func (f *Feed) onDisconnected() {
	f.setState(StateDisconnected)
	metrics.FeedReconnects.Add(1)
	f.requestReconnect()
}

func (f *Feed) markData() {
	f.lastDataMu.Lock()
	f.lastDataAt = time.Now()
	f.lastDataMu.Unlock()
}

func (f *Feed) lastData() time.Time {
	f.lastDataMu.RLock()
	defer f.lastDataMu.RUnlock()
	return f.lastDataAt
}

// silenceWatchdog “假活连接”检测：transport 自称 open 但长时间没有
// 数据消息时强制断开重连。与开盘价 soft-reset 是两个独立的定时器：
// 触发条件不同（无数据 vs 大波动），只是效果相似。
func (f *Feed) silenceWatchdog(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.closeC:
			return
		case <-ticker.C:
			if f.State() != StateConnected {
				continue
			}
			last := f.lastData()
			if last.IsZero() || time.Since(last) < silenceTimeout {
				continue
			}
			log.Warnf("⚠️ 行情连接 %s 无数据（假活），强制重连", time.Since(last).Truncate(time.Second))
			metrics.FeedSilenceTrips.Add(1)
			f.connMu.Lock()
			if f.conn != nil {
				_ = f.conn.Close()
			}
			f.connMu.Unlock()
			f.onDisconnected()
		}
	}
}

// handleMessage 解析组合流消息并写入 per-asset cell。
func (f *Feed) handleMessage(msg []byte) {
	type payload struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	var p payload
	if err := json.Unmarshal(msg, &p); err != nil {
		return
	}
	if len(p.Data) == 0 {
		return
	}

	// Binance futures kline payload
	type klinePayload struct {
		EventType string `json:"e"`
		EventTime int64  `json:"E"`
		K         struct {
			Symbol   string `json:"s"`
			Interval string `json:"i"`
			Close    string `json:"c"`
		} `json:"k"`
	}
	var ev klinePayload
	if err := json.Unmarshal(p.Data, &ev); err != nil {
		return
	}
	if ev.EventType != "kline" {
		return
	}

	asset, ok := f.symbols[strings.ToLower(strings.TrimSpace(ev.K.Symbol))]
	if !ok {
		return
	}
	price, ok := parseFloat(ev.K.Close)
	if !ok || price <= 0 {
		return
	}

	f.markData()

	sample := domain.PriceSample{
		Asset:        asset,
		Price:        price,
		ObservedAtMs: time.Now().UnixMilli(),
	}
	f.mu.Lock()
	f.cells[asset] = sample // 覆盖式写入：last-write-wins，无队列
	f.mu.Unlock()
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
