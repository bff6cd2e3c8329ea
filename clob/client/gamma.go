package client

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betbot/spreadbot/clob/types"
	"github.com/betbot/spreadbot/pkg/ratelimit"
)

const gammaHost = "https://gamma-api.polymarket.com"

// GammaMarket Gamma API 市场记录
type GammaMarket struct {
	ID              string `json:"id"`
	Question        string `json:"question"`
	ConditionID     string `json:"conditionId"`
	Slug            string `json:"slug"`
	ClobTokenIDs    string `json:"clobTokenIds"`    // JSON 数组字符串：[up, down]
	Outcomes        string `json:"outcomes"`        // JSON 数组字符串
	OutcomePrices   string `json:"outcomePrices"`   // JSON 数组字符串
	EndDate         string `json:"endDate"`
	StartDate       string `json:"startDate"`
	Closed          bool   `json:"closed"`
	NegRisk         bool   `json:"negRisk"`
	OrderPriceMinTickSize float64 `json:"orderPriceMinTickSize"`
	OrderMinSize          float64 `json:"orderMinSize"`
	UmaResolutionStatus   string  `json:"umaResolutionStatus"`
}

// GammaClient Gamma API 客户端（公开接口，无需认证）
type GammaClient struct {
	http    *resty.Client
	limiter *ratelimit.Limiter
}

// NewGammaClient 创建 Gamma 客户端
func NewGammaClient(timeout time.Duration) *GammaClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GammaClient{
		http: resty.New().
			SetBaseURL(gammaHost).
			SetTimeout(timeout).
			SetRetryCount(3).
			SetRetryWaitTime(2 * time.Second).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "spreadbot-gamma"),
		limiter: ratelimit.NewLimiter(),
	}
}

// MarketBySlug 按 slug 查询市场。未找到返回错误。
func (g *GammaClient) MarketBySlug(ctx context.Context, slug string) (*GammaMarket, error) {
	if err := g.limiter.Wait(ctx, "gamma:markets:get"); err != nil {
		return nil, errors.Wrap(err, "速率限制等待失败")
	}

	var markets []GammaMarket
	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		SetResult(&markets).
		Get("/markets")
	if err := checkResponse(resp, err, "查询 Gamma 市场"); err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, errors.Errorf("未找到市场: %s", slug)
	}
	return &markets[0], nil
}

// TokenIDs 解析 clobTokenIds（约定 [0]=Up, [1]=Down）
func (m *GammaMarket) TokenIDs() (up, down string, err error) {
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return "", "", errors.Wrap(err, "解析 clobTokenIds 失败")
	}
	if len(ids) < 2 {
		return "", "", errors.Errorf("clobTokenIds 数量异常: %d", len(ids))
	}
	return ids[0], ids[1], nil
}

// WinningOutcomeIndex 已 resolve 市场的获胜侧（0=Up, 1=Down）。
// outcomePrices 中价格为 1 的一侧获胜；未 resolve 返回 ok=false。
func (m *GammaMarket) WinningOutcomeIndex() (idx int, ok bool) {
	if !strings.HasPrefix(strings.ToLower(m.UmaResolutionStatus), "resolved") {
		return 0, false
	}
	var prices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil || len(prices) < 2 {
		return 0, false
	}
	switch {
	case prices[0] == "1":
		return 0, true
	case prices[1] == "1":
		return 1, true
	}
	return 0, false
}

// TickSizeFromFloat 把数值 tick size 转成 API 的字符串枚举。
// 未知值按最常见的 0.01 处理。
func TickSizeFromFloat(v float64) types.TickSize {
	switch v {
	case 0.1:
		return types.TickSize01
	case 0.001:
		return types.TickSize0001
	case 0.0001:
		return types.TickSize00001
	default:
		return types.TickSize001
	}
}
