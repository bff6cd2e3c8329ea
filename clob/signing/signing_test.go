package signing

import (
	"math/big"
	"strings"
	"testing"

	"github.com/betbot/spreadbot/clob/types"
)

// 著名测试私钥（key = 1）对应的地址
const (
	testKeyHex  = "0000000000000000000000000000000000000000000000000000000000000001"
	testKeyAddr = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

func TestParsePrivateKey(t *testing.T) {
	pk, err := ParsePrivateKey(testKeyHex)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if got := AddressOf(pk).Hex(); got != testKeyAddr {
		t.Errorf("AddressOf = %s, want %s", got, testKeyAddr)
	}

	// 0x 前缀同样接受
	pk2, err := ParsePrivateKey("0x" + testKeyHex)
	if err != nil {
		t.Fatalf("带 0x 前缀解析失败: %v", err)
	}
	if AddressOf(pk2) != AddressOf(pk) {
		t.Error("前缀不应影响结果")
	}

	if _, err := ParsePrivateKey("not-a-key"); err == nil {
		t.Error("非法私钥应报错")
	}
}

func TestSignClobAuthDeterministic(t *testing.T) {
	pk, _ := ParsePrivateKey(testKeyHex)

	sig1, err := SignClobAuth(pk, types.ChainPolygon, 1767000000, 0)
	if err != nil {
		t.Fatalf("签名失败: %v", err)
	}
	if !strings.HasPrefix(sig1, "0x") || len(sig1) != 132 {
		t.Errorf("签名格式异常: len=%d %s", len(sig1), sig1[:10])
	}

	// 同一输入签名必须可复现（RFC 6979 确定性 nonce）
	sig2, _ := SignClobAuth(pk, types.ChainPolygon, 1767000000, 0)
	if sig1 != sig2 {
		t.Error("同输入签名应一致")
	}

	// 改变任一输入签名必须变化
	sig3, _ := SignClobAuth(pk, types.ChainPolygon, 1767000001, 0)
	if sig1 == sig3 {
		t.Error("不同 timestamp 签名不应相同")
	}
}

func TestSignHmac(t *testing.T) {
	secret := "c2VjcmV0LXNlZWQtZm9yLXRlc3Rpbmc=" // base64("secret-seed-for-testing")
	body := `{"hello":"world"}`

	sig1, err := SignHmac(secret, 1767000000, "POST", "/order", &body)
	if err != nil {
		t.Fatalf("HMAC 失败: %v", err)
	}
	if sig1 == "" {
		t.Fatal("签名为空")
	}

	sig2, _ := SignHmac(secret, 1767000000, "POST", "/order", &body)
	if sig1 != sig2 {
		t.Error("同输入 HMAC 应一致")
	}

	sig3, _ := SignHmac(secret, 1767000000, "GET", "/order", nil)
	if sig1 == sig3 {
		t.Error("不同请求 HMAC 不应相同")
	}
}

func TestSignOrder(t *testing.T) {
	pk, _ := ParsePrivateKey(testKeyHex)
	order := &OrderData{
		Salt:          479249096354,
		Maker:         testKeyAddr,
		Signer:        testKeyAddr,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       big.NewInt(1234567890),
		MakerAmount:   big.NewInt(99999800),
		TakerAmount:   big.NewInt(161290000),
		Expiration:    big.NewInt(0),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(0),
		Side:          types.SideBuy,
		SignatureType: types.SignatureType(0),
	}

	sig, err := SignOrder(pk, types.ChainPolygon, "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E", order)
	if err != nil {
		t.Fatalf("订单签名失败: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 132 {
		t.Errorf("签名格式异常: len=%d", len(sig))
	}

	// salt 变化 -> 哈希变化 -> 签名变化
	order.Salt = 479249096355
	sig2, _ := SignOrder(pk, types.ChainPolygon, "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E", order)
	if sig == sig2 {
		t.Error("不同 salt 签名不应相同")
	}
}
