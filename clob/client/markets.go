package client

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/betbot/spreadbot/clob/signing"
	"github.com/betbot/spreadbot/clob/types"
)

// OrderBookSummary GET /book 响应（携带市场交易参数）
type OrderBookSummary struct {
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Timestamp    string `json:"timestamp"`
	MinOrderSize string `json:"min_order_size"`
	TickSize     string `json:"tick_size"`
	NegRisk      bool   `json:"neg_risk"`
	Bids         []BookLevel `json:"bids"`
	Asks         []BookLevel `json:"asks"`
}

// BookLevel 订单簿单档
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// GetOrderBook 查询 token 的订单簿（含 tick size / min size / neg risk）
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*OrderBookSummary, error) {
	if err := c.limiter.Wait(ctx, "clob:book:get"); err != nil {
		return nil, errors.Wrap(err, "速率限制等待失败")
	}

	var book OrderBookSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&book).
		Get(endpointGetOrderBook)
	if err := checkResponse(resp, err, "查询订单簿"); err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBalanceAllowance 查询抵押品或条件代币的余额/授权额度
func (c *Client) GetBalanceAllowance(ctx context.Context, params *types.BalanceAllowanceParams) (*types.BalanceAllowance, error) {
	if err := c.canL2(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, "clob:balance:get"); err != nil {
		return nil, errors.Wrap(err, "速率限制等待失败")
	}

	headers, err := signing.L2Headers(c.privateKey, c.creds, &types.L2HeaderArgs{
		Method:      "GET",
		RequestPath: endpointBalanceAllowance,
	})
	if err != nil {
		return nil, errors.Wrap(err, "构建 L2 认证头失败")
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.ToMap()).
		SetQueryParam("asset_type", string(params.AssetType)).
		SetQueryParam("signature_type", strconv.Itoa(int(params.SignatureType)))
	if params.TokenID != "" {
		req.SetQueryParam("token_id", params.TokenID)
	}

	var ba types.BalanceAllowance
	resp, err := req.SetResult(&ba).Get(endpointBalanceAllowance)
	if err := checkResponse(resp, err, "查询余额授权"); err != nil {
		return nil, err
	}
	return &ba, nil
}
