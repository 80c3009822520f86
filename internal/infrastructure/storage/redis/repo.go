package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

// Publisher mirrors the latest kline per platform and symbol into a hash and fans order
// lifecycle events out to a stream and a pubsub channel.
type Publisher struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration
	keyLatest   string // prefix + ":kline:latest"
	orderStream string
	orderChan   string
}

// LatestKline is the hash value stored per "PLATFORM:SYMBOL" field.
type LatestKline struct {
	Platform string `json:"platform"`
	Symbol   string `json:"symbol"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Ts       int64  `json:"t"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, orderStream, orderChan string) *Publisher {
	if strings.TrimSpace(prefix) == "" {
		prefix = "quantstore"
	}
	if strings.TrimSpace(orderStream) == "" {
		orderStream = prefix + ":orders"
	}
	if strings.TrimSpace(orderChan) == "" {
		orderChan = prefix + ":orders:pub"
	}
	return &Publisher{
		rdb:         rdb,
		prefix:      prefix,
		ttl:         ttl,
		keyLatest:   prefix + ":kline:latest",
		orderStream: orderStream,
		orderChan:   orderChan,
	}
}

// LatestKey is the hash holding the latest kline of every platform and symbol.
func (r *Publisher) LatestKey() string { return r.keyLatest }

func (r *Publisher) PublishKline(ctx context.Context, k model.Kline) error {
	b, err := json.Marshal(latestKline(k))
	if err != nil {
		return err
	}

	pipe := r.rdb.Pipeline()
	// Hash: field = "BINANCE:BTC/USDT" -> json
	pipe.HSet(ctx, r.keyLatest, k.Key(), string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Publisher) PublishOrder(ctx context.Context, o model.Order) error {
	// 1) Stream: XADD <stream> * platform no status ...
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.orderStream,
		Values: orderValues(o),
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.orderChan, string(b)).Err()
}

func (r *Publisher) Close() error { return r.rdb.Close() }

func latestKline(k model.Kline) LatestKline {
	return LatestKline{
		Platform: k.Platform,
		Symbol:   k.Symbol,
		Open:     k.Open.String(),
		High:     k.High.String(),
		Low:      k.Low.String(),
		Close:    k.Close.String(),
		Ts:       k.Timestamp,
	}
}

func orderValues(o model.Order) map[string]any {
	return map[string]any{
		"platform": o.Platform,
		"account":  o.Account,
		"symbol":   o.Symbol,
		"order_no": o.OrderNo,
		"status":   o.Status,
		"remain":   o.Remain.String(),
		"utime":    o.UpdateTime,
	}
}

var _ port.EventPublisher = (*Publisher)(nil)
