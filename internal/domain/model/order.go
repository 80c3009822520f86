package model

import "github.com/shopspring/decimal"

// 买卖方向
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// 订单类型
const (
	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"
)

// 订单状态. The store persists any status string; these are the ones the platform emits.
const (
	OrderStatusNone          = "NONE"
	OrderStatusSubmitted     = "SUBMITTED"
	OrderStatusPartialFilled = "PARTIAL-FILLED"
	OrderStatusFilled        = "FILLED"
	OrderStatusCanceled      = "CANCELED"
	OrderStatusFailed        = "FAILED"
)

// 合约交易类型
const (
	TradeTypeNone      = 0
	TradeTypeBuyOpen   = 1
	TradeTypeSellOpen  = 2
	TradeTypeBuyClose  = 3
	TradeTypeSellClose = 4
)

// Order 订单
type Order struct {
	ID         string          `json:"id,omitempty"`
	Platform   string          `json:"platform"`
	Account    string          `json:"account"`
	Strategy   string          `json:"strategy"`
	Symbol     string          `json:"symbol"`
	OrderNo    string          `json:"order_no"` // 交易所订单号（自然键）
	Action     string          `json:"action"`
	OrderType  string          `json:"order_type"`
	Status     string          `json:"status"`
	Price      decimal.Decimal `json:"price"`
	AvgPrice   decimal.Decimal `json:"avg_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Remain     decimal.Decimal `json:"remain"` // 剩余未成交数量
	TradeType  int             `json:"trade_type"`
	CreateTime int64           `json:"ctime"`
	UpdateTime int64           `json:"utime"`
}

// IsTerminal reports whether the status is one the exchange never moves away from.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusFailed:
		return true
	}
	return false
}
