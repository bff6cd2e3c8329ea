package signing

import (
	"crypto/ecdsa"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/spreadbot/clob/types"
)

// L1Headers 构建 L1 认证头（创建/派生 API key 用）
func L1Headers(privateKey *ecdsa.PrivateKey, chainID types.Chain, nonce int64) (*types.L1PolyHeader, error) {
	ts := time.Now().Unix()

	sig, err := SignClobAuth(privateKey, chainID, ts, nonce)
	if err != nil {
		return nil, errors.Wrap(err, "构建认证签名失败")
	}

	return &types.L1PolyHeader{
		PolyAddress:   AddressOf(privateKey).Hex(),
		PolySignature: sig,
		PolyTimestamp: strconv.FormatInt(ts, 10),
		PolyNonce:     strconv.FormatInt(nonce, 10),
	}, nil
}

// L2Headers 构建 L2 认证头（下单、撤单、查询私有数据）
func L2Headers(privateKey *ecdsa.PrivateKey, creds *types.ApiKeyCreds, args *types.L2HeaderArgs) (*types.L2PolyHeader, error) {
	ts := time.Now().Unix()

	sig, err := SignHmac(creds.Secret, ts, args.Method, args.RequestPath, args.Body)
	if err != nil {
		return nil, errors.Wrap(err, "构建 HMAC 签名失败")
	}

	return &types.L2PolyHeader{
		PolyAddress:    AddressOf(privateKey).Hex(),
		PolySignature:  sig,
		PolyTimestamp:  strconv.FormatInt(ts, 10),
		PolyAPIKey:     creds.Key,
		PolyPassphrase: creds.Passphrase,
	}, nil
}
