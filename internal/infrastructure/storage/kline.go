package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

// K线文档字段
const (
	klineOpen  = "o"
	klineHigh  = "h"
	klineLow   = "l"
	klineClose = "c"
	klineTime  = "t"
)

// KlineStore saves and queries klines, one partition per symbol.
//
//	{"o": open, "h": high, "l": low, "c": close, "t": ms timestamp}
//
// No price sanity checks are made (high >= low etc.); callers own validation.
type KlineStore struct {
	router *PartitionRouter
}

func NewKlineStore(router *PartitionRouter) *KlineStore {
	return &KlineStore{router: router}
}

// Insert stores one kline and returns the generated document id.
func (s *KlineStore) Insert(ctx context.Context, symbol string, open, high, low, close decimal.Decimal, ts int64) (string, error) {
	p, err := s.router.Resolve(ctx, symbol)
	if err != nil {
		return "", err
	}
	doc := bson.M{klineTime: ts}
	for key, v := range map[string]decimal.Decimal{klineOpen: open, klineHigh: high, klineLow: low, klineClose: close} {
		d, err := toDecimal128(v)
		if err != nil {
			return "", err
		}
		doc[key] = d
	}
	return p.Insert(ctx, doc)
}

// GetAsOf returns the kline with the greatest timestamp <= ts. Only ts == 0 means no bound,
// i.e. the newest kline by business time.
func (s *KlineStore) GetAsOf(ctx context.Context, symbol string, ts int64) (model.Kline, bool, error) {
	p, err := s.router.Resolve(ctx, symbol)
	if err != nil {
		return model.Kline{}, false, err
	}
	filter := bson.M{}
	if ts != 0 {
		filter[klineTime] = bson.M{port.OpLte: ts}
	}
	return s.findOne(ctx, p, symbol, filter, bson.D{{Key: klineTime, Value: -1}, {Key: port.FieldID, Value: -1}})
}

// GetLatestByInsertionOrder returns the most recently written kline regardless of its
// own timestamp. Backfills of old candles therefore show up here, not in GetAsOf.
func (s *KlineStore) GetLatestByInsertionOrder(ctx context.Context, symbol string) (model.Kline, bool, error) {
	p, err := s.router.Resolve(ctx, symbol)
	if err != nil {
		return model.Kline{}, false, err
	}
	return s.findOne(ctx, p, symbol, bson.M{}, bson.D{{Key: port.FieldCreateTime, Value: -1}, {Key: port.FieldID, Value: -1}})
}

// GetRange returns klines with start <= t <= end in ascending time order.
func (s *KlineStore) GetRange(ctx context.Context, symbol string, start, end int64) ([]model.Kline, error) {
	p, err := s.router.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}
	docs, err := p.FindMany(ctx, between(klineTime, start, end), port.FindOptions{
		Sort:    bson.D{{Key: klineTime, Value: 1}, {Key: port.FieldID, Value: 1}},
		Exclude: bookkeeping,
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Kline, 0, len(docs))
	for _, d := range docs {
		k, err := decodeKline(symbol, d)
		if err != nil {
			return nil, err
		}
		k.Platform = s.router.Database()
		out = append(out, k)
	}
	return out, nil
}

func (s *KlineStore) findOne(ctx context.Context, p port.Partition, symbol string, filter bson.M, sort bson.D) (model.Kline, bool, error) {
	doc, found, err := p.FindOne(ctx, filter, port.FindOptions{Sort: sort})
	if err != nil || !found {
		return model.Kline{}, false, err
	}
	k, err := decodeKline(symbol, doc)
	if err != nil {
		return model.Kline{}, false, err
	}
	k.Platform = s.router.Database()
	return k, true, nil
}

func decodeKline(symbol string, doc bson.M) (model.Kline, error) {
	k := model.Kline{
		ID:        idField(doc),
		Symbol:    symbol,
		Timestamp: int64Field(doc, klineTime),
		CreatedAt: int64Field(doc, port.FieldCreateTime),
	}
	var err error
	if k.Open, err = decimalField(doc, klineOpen); err != nil {
		return k, err
	}
	if k.High, err = decimalField(doc, klineHigh); err != nil {
		return k, err
	}
	if k.Low, err = decimalField(doc, klineLow); err != nil {
		return k, err
	}
	if k.Close, err = decimalField(doc, klineClose); err != nil {
		return k, err
	}
	return k, nil
}

// KlineStores keeps one KlineStore per platform. A platform's klines live in the
// database named after it (lower-cased), so the same symbol on two exchanges never
// shares a partition.
type KlineStores struct {
	store port.DocumentStore

	mu     sync.RWMutex
	stores map[string]*KlineStore
}

func NewKlineStores(store port.DocumentStore) *KlineStores {
	return &KlineStores{store: store, stores: make(map[string]*KlineStore)}
}

// KlineDatabase is the database holding a platform's kline partitions.
func KlineDatabase(platform string) (string, error) {
	db := strings.ToLower(strings.TrimSpace(platform))
	if db == "" || strings.ContainsAny(db, "/\\. \"$") {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidPlatform, platform)
	}
	return db, nil
}

// For returns the kline store of platform, creating it on first use.
func (s *KlineStores) For(platform string) (port.KlineRepository, error) {
	db, err := KlineDatabase(platform)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	ks, ok := s.stores[db]
	s.mu.RUnlock()
	if ok {
		return ks, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ks, ok = s.stores[db]; !ok {
		ks = NewKlineStore(NewPartitionRouter(s.store, db))
		s.stores[db] = ks
	}
	return ks, nil
}

var (
	_ port.KlineRepository   = (*KlineStore)(nil)
	_ port.KlineRepositories = (*KlineStores)(nil)
)
