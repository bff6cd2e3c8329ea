package client

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/spreadbot/clob/signing"
	"github.com/betbot/spreadbot/clob/types"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// BuildOrder 把下单意图构建成已签名订单。
// 金额按市场 tick size 舍入后转为 6 位精度整数单位再签名。
func (c *Client) BuildOrder(userOrder *types.UserOrder, opts *types.CreateOrderOptions) (*types.SignedOrder, error) {
	if c.privateKey == nil {
		return nil, errors.New("未配置私钥")
	}

	contracts, err := ContractsFor(c.chainID)
	if err != nil {
		return nil, err
	}

	rc, err := RoundingFor(opts.TickSize)
	if err != nil {
		return nil, err
	}

	signer := signing.AddressOf(c.privateKey).Hex()
	maker := signer
	if c.funderAddress != "" {
		maker = c.funderAddress
	}

	taker := zeroAddress
	if userOrder.Taker != "" {
		taker = userOrder.Taker
	}

	makerAmt, takerAmt := orderAmounts(userOrder.Side, userOrder.Size, userOrder.Price, rc)
	makerUnits := toUnits(makerAmt, CollateralTokenDecimals).BigInt()
	takerUnits := toUnits(takerAmt, CollateralTokenDecimals).BigInt()

	tokenID, ok := new(big.Int).SetString(userOrder.TokenID, 10)
	if !ok {
		return nil, errors.Errorf("无效的 tokenID: %s", userOrder.TokenID)
	}

	exchange := contracts.Exchange
	if opts.NegRisk {
		exchange = contracts.NegRiskExchange
	}

	salt := time.Now().UnixNano()
	expiration := big.NewInt(userOrder.Expiration)
	nonce := big.NewInt(userOrder.Nonce)
	feeRateBps := big.NewInt(int64(userOrder.FeeRateBps))

	orderData := &signing.OrderData{
		Salt:          salt,
		Maker:         maker,
		Signer:        signer,
		Taker:         taker,
		TokenID:       tokenID,
		MakerAmount:   makerUnits,
		TakerAmount:   takerUnits,
		Expiration:    expiration,
		Nonce:         nonce,
		FeeRateBps:    feeRateBps,
		Side:          userOrder.Side,
		SignatureType: c.signatureType,
	}

	signature, err := signing.SignOrder(c.privateKey, c.chainID, exchange, orderData)
	if err != nil {
		return nil, errors.Wrap(err, "签名订单失败")
	}

	return &types.SignedOrder{
		Salt:          salt,
		Maker:         maker,
		Signer:        signer,
		Taker:         taker,
		TokenID:       userOrder.TokenID,
		MakerAmount:   makerUnits.String(),
		TakerAmount:   takerUnits.String(),
		Expiration:    expiration.String(),
		Nonce:         nonce.String(),
		FeeRateBps:    feeRateBps.String(),
		Side:          userOrder.Side,
		SignatureType: int(c.signatureType),
		Signature:     signature,
	}, nil
}
