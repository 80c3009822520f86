package model

import "github.com/shopspring/decimal"

// Balance 单个币种余额
type Balance struct {
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
	Total  decimal.Decimal `json:"total"`
}

// NewBalance builds a balance whose total is free + locked.
func NewBalance(free, locked decimal.Decimal) Balance {
	return Balance{Free: free, Locked: locked, Total: free.Add(locked)}
}

// Balances 币种 -> 余额, e.g. {"BTC": {...}, "ETH": {...}}
type Balances map[string]Balance

// Currencies returns the currency codes held in b.
func (b Balances) Currencies() []string {
	out := make([]string, 0, len(b))
	for c := range b {
		out = append(out, c)
	}
	return out
}

// Asset 账户资产快照
type Asset struct {
	Platform  string   `json:"platform"`
	Account   string   `json:"account"`
	Timestamp int64    `json:"ts_ms"`
	Balances  Balances `json:"balances"`
}
