package client

import (
	"crypto/ecdsa"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betbot/spreadbot/clob/types"
	"github.com/betbot/spreadbot/pkg/ratelimit"
)

// API 端点
const (
	endpointTime             = "/time"
	endpointCreateAPIKey     = "/auth/api-key"
	endpointDeriveAPIKey     = "/auth/derive-api-key"
	endpointPostOrder        = "/order"
	endpointCancelOrder      = "/order"
	endpointGetOrder         = "/data/order/"
	endpointGetOpenOrders    = "/data/orders"
	endpointGetOrderBook     = "/book"
	endpointBalanceAllowance = "/balance-allowance"
)

// Client Polymarket CLOB REST 客户端。
// L1（私钥签名）用于派生 API key；L2（API key + HMAC）用于交易操作。
type Client struct {
	host       string
	chainID    types.Chain
	privateKey *ecdsa.PrivateKey
	creds      *types.ApiKeyCreds

	// funderAddress 资金账户地址（代理钱包）。为空时 maker = signer。
	funderAddress string
	signatureType types.SignatureType

	http    *resty.Client
	limiter *ratelimit.Limiter
}

// Options 客户端可选项
type Options struct {
	FunderAddress  string
	SignatureType  types.SignatureType
	RequestTimeout time.Duration
}

// New 创建 CLOB 客户端。creds 可为 nil，此时只能调用 L1/公开接口。
func New(host string, chainID types.Chain, privateKey *ecdsa.PrivateKey, creds *types.ApiKeyCreds, opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// resty 自动读取 HTTP_PROXY / HTTPS_PROXY 环境变量
	http := resty.New().
		SetBaseURL(strings.TrimSuffix(host, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "spreadbot-clob")

	return &Client{
		host:          strings.TrimSuffix(host, "/"),
		chainID:       chainID,
		privateKey:    privateKey,
		creds:         creds,
		funderAddress: opts.FunderAddress,
		signatureType: opts.SignatureType,
		http:          http,
		limiter:       ratelimit.NewLimiter(),
	}
}

// Host 主机地址
func (c *Client) Host() string { return c.host }

// ChainID 链 ID
func (c *Client) ChainID() types.Chain { return c.chainID }

// SetCreds 注入派生得到的 API 密钥
func (c *Client) SetCreds(creds *types.ApiKeyCreds) { c.creds = creds }

// canL2 是否具备 L2 认证条件
func (c *Client) canL2() error {
	if c.privateKey == nil {
		return errors.New("未配置私钥")
	}
	if c.creds == nil || c.creds.Key == "" {
		return errors.New("未配置 API 密钥（先调用 DeriveApiKey）")
	}
	return nil
}

// checkResponse 统一处理非 2xx 响应
func checkResponse(resp *resty.Response, err error, what string) error {
	if err != nil {
		return errors.Wrap(err, what)
	}
	if resp.IsError() {
		return errors.Errorf("%s: HTTP %d: %s", what, resp.StatusCode(), resp.String())
	}
	return nil
}
