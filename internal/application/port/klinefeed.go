package port

import (
	"context"

	"quantstore/internal/domain/model"
)

type KlineTick struct {
	Exchange string      // "BINANCE"
	Kline    model.Kline // Symbol is normalized to BASE/QUOTE
	Interval string      // "1m"
	Final    bool        // candle closed
}

type KlineFeed interface {
	Name() string
	Subscribe(ctx context.Context, symbols []string) (<-chan KlineTick, error)
}
