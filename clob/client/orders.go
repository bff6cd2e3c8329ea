package client

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/betbot/spreadbot/clob/signing"
	"github.com/betbot/spreadbot/clob/types"
)

// PostOrder 提交已签名订单。
// 成功但被引擎拒绝时（success=false）同样返回 error，errorMsg 进错误文本，
// 方便上层按消息分类（余额不足属于瞬态错误）。
func (c *Client) PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType) (*types.OrderResponse, error) {
	if err := c.canL2(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, "clob:order:post"); err != nil {
		return nil, errors.Wrap(err, "速率限制等待失败")
	}

	payload := types.NewOrderRequest{
		Order:     *order,
		Owner:     c.creds.Key,
		OrderType: orderType,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "序列化订单失败")
	}
	bodyStr := string(body)

	headers, err := signing.L2Headers(c.privateKey, c.creds, &types.L2HeaderArgs{
		Method:      "POST",
		RequestPath: endpointPostOrder,
		Body:        &bodyStr,
	})
	if err != nil {
		return nil, errors.Wrap(err, "构建 L2 认证头失败")
	}

	var orderResp types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.ToMap()).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&orderResp).
		Post(endpointPostOrder)
	if err := checkResponse(resp, err, "提交订单"); err != nil {
		return nil, err
	}

	if !orderResp.Success {
		return &orderResp, errors.Errorf("订单被拒绝: %s", orderResp.ErrorMsg)
	}
	return &orderResp, nil
}

// CancelOrder 取消单个订单
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*types.OrderResponse, error) {
	if err := c.canL2(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, "clob:order:cancel"); err != nil {
		return nil, errors.Wrap(err, "速率限制等待失败")
	}

	body, err := json.Marshal(map[string]string{"orderID": orderID})
	if err != nil {
		return nil, errors.Wrap(err, "序列化请求失败")
	}
	bodyStr := string(body)

	headers, err := signing.L2Headers(c.privateKey, c.creds, &types.L2HeaderArgs{
		Method:      "DELETE",
		RequestPath: endpointCancelOrder,
		Body:        &bodyStr,
	})
	if err != nil {
		return nil, errors.Wrap(err, "构建 L2 认证头失败")
	}

	var orderResp types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.ToMap()).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&orderResp).
		Delete(endpointCancelOrder)
	if err := checkResponse(resp, err, "取消订单"); err != nil {
		return nil, errors.Wrapf(err, "orderID=%s", orderID)
	}
	return &orderResp, nil
}

// GetOrder 查询单个订单状态
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error) {
	if err := c.canL2(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, "clob:order:get"); err != nil {
		return nil, errors.Wrap(err, "速率限制等待失败")
	}

	path := endpointGetOrder + orderID
	headers, err := signing.L2Headers(c.privateKey, c.creds, &types.L2HeaderArgs{
		Method:      "GET",
		RequestPath: path,
	})
	if err != nil {
		return nil, errors.Wrap(err, "构建 L2 认证头失败")
	}

	var order types.OpenOrder
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.ToMap()).
		SetResult(&order).
		Get(path)
	if err := checkResponse(resp, err, "查询订单"); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOpenOrders 查询当前挂单（market / assetID 可选过滤）
func (c *Client) GetOpenOrders(ctx context.Context, market, assetID string) ([]types.OpenOrder, error) {
	if err := c.canL2(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, "clob:orders:get"); err != nil {
		return nil, errors.Wrap(err, "速率限制等待失败")
	}

	headers, err := signing.L2Headers(c.privateKey, c.creds, &types.L2HeaderArgs{
		Method:      "GET",
		RequestPath: endpointGetOpenOrders,
	})
	if err != nil {
		return nil, errors.Wrap(err, "构建 L2 认证头失败")
	}

	req := c.http.R().SetContext(ctx).SetHeaders(headers.ToMap())
	if market != "" {
		req.SetQueryParam("market", market)
	}
	if assetID != "" {
		req.SetQueryParam("asset_id", assetID)
	}

	var orders []types.OpenOrder
	resp, err := req.SetResult(&orders).Get(endpointGetOpenOrders)
	if err := checkResponse(resp, err, "查询挂单"); err != nil {
		return nil, err
	}
	return orders, nil
}
