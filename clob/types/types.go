package types

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType 订单有效期类型
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good Till Cancel
	OrderTypeFOK OrderType = "FOK" // Fill or Kill
	OrderTypeGTD OrderType = "GTD" // Good Till Date
	OrderTypeFAK OrderType = "FAK" // Fill and Kill
)

// Chain 链 ID
type Chain int

const (
	ChainPolygon Chain = 137
	ChainAmoy    Chain = 80002
)

// SignatureType 签名类型
type SignatureType int

const (
	SignatureTypeEOA        SignatureType = 0 // 标准 EOA 钱包
	SignatureTypeMagic      SignatureType = 1 // POLY_PROXY（Magic Link）
	SignatureTypeGnosisSafe SignatureType = 2 // Gnosis Safe 代理钱包
)

// AssetType balance-allowance 查询的资产类型
type AssetType string

const (
	AssetTypeCollateral  AssetType = "COLLATERAL"
	AssetTypeConditional AssetType = "CONDITIONAL"
)

// TickSize 市场价格步长（API 以字符串传递）
type TickSize string

const (
	TickSize01    TickSize = "0.1"
	TickSize001   TickSize = "0.01"
	TickSize0001  TickSize = "0.001"
	TickSize00001 TickSize = "0.0001"
)

// ApiKeyCreds L2 认证用的 API 密钥三元组
type ApiKeyCreds struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// UserOrder 上层下单意图（未签名）
type UserOrder struct {
	TokenID    string
	Price      float64
	Size       float64
	Side       Side
	FeeRateBps int
	Nonce      int64
	Expiration int64
	Taker      string
}

// CreateOrderOptions 构建订单时的市场参数
type CreateOrderOptions struct {
	TickSize TickSize
	NegRisk  bool
}

// SignedOrder 已签名订单（POST /order 的 order 字段）
type SignedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          Side   `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// NewOrderRequest POST /order 的完整载荷
type NewOrderRequest struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType OrderType   `json:"orderType"`
}

// OrderResponse 下单/撤单响应
type OrderResponse struct {
	Success      bool     `json:"success"`
	ErrorMsg     string   `json:"errorMsg"`
	OrderID      string   `json:"orderID"`
	Status       string   `json:"status"`
	TakingAmount string   `json:"takingAmount"`
	MakingAmount string   `json:"makingAmount"`
	TransactionHashes []string `json:"transactionsHashes"`
}

// OpenOrder GET /data/orders 返回的挂单
type OpenOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Market        string `json:"market"`
	AssetID       string `json:"asset_id"`
	Side          Side   `json:"side"`
	Price         string `json:"price"`
	OriginalSize  string `json:"original_size"`
	SizeMatched   string `json:"size_matched"`
	CreatedAt     int64  `json:"created_at"`
}

// BalanceAllowance GET /balance-allowance 响应
type BalanceAllowance struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// BalanceAllowanceParams balance-allowance 查询参数
type BalanceAllowanceParams struct {
	AssetType     AssetType
	TokenID       string
	SignatureType SignatureType
}
