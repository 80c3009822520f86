package binance

import (
	"quantstore/internal/application/port"
	"quantstore/internal/infrastructure/feed"
)

// init() registers the Binance kline feed factory
func init() {
	feed.Register(Name, func(wsURL, interval string) port.KlineFeed {
		return NewKlineFeed(wsURL, interval, nil)
	})
}
