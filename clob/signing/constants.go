package signing

const (
	// clobAuthDomainName L1 认证的 EIP712 域名
	clobAuthDomainName = "ClobAuthDomain"

	// clobAuthVersion L1 认证的 EIP712 版本
	clobAuthVersion = "1"

	// clobAuthMessage 固定的认证声明文本（协议常量，不可改动）
	clobAuthMessage = "This message attests that I control the given wallet"

	// exchangeDomainName 订单签名的 EIP712 域名
	exchangeDomainName = "Polymarket CTF Exchange"

	// exchangeVersion 订单签名的 EIP712 版本
	exchangeVersion = "1"
)
