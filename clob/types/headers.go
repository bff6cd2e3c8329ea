package types

// L1PolyHeader L1 认证头（EIP712 签名）
type L1PolyHeader struct {
	PolyAddress   string
	PolySignature string
	PolyTimestamp string
	PolyNonce     string
}

// ToMap 转为 HTTP 头
func (h *L1PolyHeader) ToMap() map[string]string {
	return map[string]string{
		"POLY_ADDRESS":   h.PolyAddress,
		"POLY_SIGNATURE": h.PolySignature,
		"POLY_TIMESTAMP": h.PolyTimestamp,
		"POLY_NONCE":     h.PolyNonce,
	}
}

// L2PolyHeader L2 认证头（API key + HMAC 签名）
type L2PolyHeader struct {
	PolyAddress    string
	PolySignature  string
	PolyTimestamp  string
	PolyAPIKey     string
	PolyPassphrase string
}

// ToMap 转为 HTTP 头
func (h *L2PolyHeader) ToMap() map[string]string {
	return map[string]string{
		"POLY_ADDRESS":    h.PolyAddress,
		"POLY_SIGNATURE":  h.PolySignature,
		"POLY_TIMESTAMP":  h.PolyTimestamp,
		"POLY_API_KEY":    h.PolyAPIKey,
		"POLY_PASSPHRASE": h.PolyPassphrase,
	}
}

// L2HeaderArgs HMAC 签名输入
type L2HeaderArgs struct {
	Method      string
	RequestPath string
	Body        *string
}
