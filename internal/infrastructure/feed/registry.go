package feed

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"quantstore/internal/application/port"
)

// Factory builds a kline feed for one exchange.
// wsURL: WebSocket base url, empty means the exchange default
type Factory func(wsURL, interval string) port.KlineFeed

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register 注册交易所的 kline feed factory, 由各交易所包的 init() 调用
func Register(exchangeName string, factory Factory) {
	if factory == nil {
		log.Warn().Str("exchange", exchangeName).Msg("invalid kline feed factory")
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[exchangeName]; exists {
		log.Warn().Str("exchange", exchangeName).Msg("kline feed factory already registered, overwriting")
	}
	registry[exchangeName] = factory
}

// Get 获取已注册的 factory
func Get(exchangeName string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := registry[exchangeName]
	return factory, ok
}

// Names lists registered exchanges, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
