package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/betbot/spreadbot/clob/signing"
	"github.com/betbot/spreadbot/clob/types"
)

// DeriveApiKey 用 L1 签名派生（已存在的）API 密钥。
// 派生结果自动注入客户端，之后可直接调用 L2 接口。
func (c *Client) DeriveApiKey(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error) {
	if c.privateKey == nil {
		return nil, errors.New("未配置私钥")
	}

	headers, err := signing.L1Headers(c.privateKey, c.chainID, nonce)
	if err != nil {
		return nil, err
	}

	var creds types.ApiKeyCreds
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.ToMap()).
		SetResult(&creds).
		Get(endpointDeriveAPIKey)
	if err := checkResponse(resp, err, "派生 API 密钥"); err != nil {
		return nil, err
	}
	if creds.Key == "" {
		return nil, errors.New("派生 API 密钥失败: 响应缺少 apiKey")
	}

	c.creds = &creds
	return &creds, nil
}

// CreateApiKey 创建新的 API 密钥（帐号首次使用时）
func (c *Client) CreateApiKey(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error) {
	if c.privateKey == nil {
		return nil, errors.New("未配置私钥")
	}

	headers, err := signing.L1Headers(c.privateKey, c.chainID, nonce)
	if err != nil {
		return nil, err
	}

	var creds types.ApiKeyCreds
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.ToMap()).
		SetResult(&creds).
		Post(endpointCreateAPIKey)
	if err := checkResponse(resp, err, "创建 API 密钥"); err != nil {
		return nil, err
	}
	if creds.Key == "" {
		return nil, errors.New("创建 API 密钥失败: 响应缺少 apiKey")
	}

	c.creds = &creds
	return &creds, nil
}
