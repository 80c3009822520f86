package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kline K线（一根蜡烛）
type Kline struct {
	ID        string          `json:"id,omitempty"`
	Platform  string          `json:"platform,omitempty"` // e.g. binance
	Symbol    string          `json:"symbol"`            // e.g. BTC/USDT
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Timestamp int64           `json:"ts_ms"`                 // 业务时间（毫秒）
	CreatedAt int64           `json:"created_at,omitempty"` // 入库时间（毫秒）
}

// Key identifies the kline series across platforms, e.g. BINANCE:BTC/USDT.
func (k Kline) Key() string {
	if k.Platform == "" {
		return k.Symbol
	}
	return strings.ToUpper(k.Platform) + ":" + k.Symbol
}
