package exchange

import (
	"sort"
	"strings"
)

// DefaultQuotes 常见计价币, longest match wins (FDUSD before USD)
var DefaultQuotes = []string{"USDT", "USDC", "FDUSD", "BUSD", "TUSD", "BTC", "ETH", "BNB", "EUR", "TRY", "USD"}

// SymbolConverter 交易所符号 <-> BASE/QUOTE
// 例: BTCUSDT <-> BTC/USDT
type SymbolConverter struct {
	quotes []string
}

// NewSymbolConverter 创建符号转换器; quotes 为空时使用 DefaultQuotes
func NewSymbolConverter(quotes ...string) *SymbolConverter {
	if len(quotes) == 0 {
		quotes = DefaultQuotes
	}
	qs := make([]string, 0, len(quotes))
	for _, q := range quotes {
		q = strings.ToUpper(strings.TrimSpace(q))
		if q != "" {
			qs = append(qs, q)
		}
	}
	sort.SliceStable(qs, func(i, j int) bool { return len(qs[i]) > len(qs[j]) })
	return &SymbolConverter{quotes: qs}
}

// ToPair 将交易所交易对转换为 BASE/QUOTE, 无法识别时返回 false
// 例: BTCUSDT -> BTC/USDT, ethbtc -> ETH/BTC
func (c *SymbolConverter) ToPair(symbol string) (string, bool) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range c.quotes {
		if len(sym) > len(q) && strings.HasSuffix(sym, q) {
			return sym[:len(sym)-len(q)] + "/" + q, true
		}
	}
	return "", false
}

// FromPair 将 BASE/QUOTE 转换为交易所格式
// 例: BTC/USDT -> BTCUSDT
func (c *SymbolConverter) FromPair(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pair), "/", ""))
}
