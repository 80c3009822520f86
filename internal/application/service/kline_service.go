package service

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

// KlineService records and reads klines of every platform. Each platform keeps its
// own partitions.
type KlineService struct {
	repos port.KlineRepositories
	pub   port.EventPublisher
}

func NewKlineService(repos port.KlineRepositories, pub port.EventPublisher) *KlineService {
	return &KlineService{repos: repos, pub: pub}
}

// Record persists a candle and publishes it. A publish failure is logged, the
// stored candle stays.
func (s *KlineService) Record(ctx context.Context, platform, symbol string, open, high, low, close decimal.Decimal, ts int64) (string, error) {
	repo, err := s.repos.For(platform)
	if err != nil {
		return "", err
	}
	id, err := repo.Insert(ctx, symbol, open, high, low, close, ts)
	if err != nil {
		return "", err
	}
	if s.pub != nil {
		k := model.Kline{ID: id, Platform: platform, Symbol: symbol, Open: open, High: high, Low: low, Close: close, Timestamp: ts}
		if err := s.pub.PublishKline(ctx, k); err != nil {
			log.Warn().Err(err).Str("platform", platform).Str("symbol", symbol).Int64("ts", ts).Msg("publish kline failed")
		}
	}
	return id, nil
}

func (s *KlineService) AsOf(ctx context.Context, platform, symbol string, ts int64) (model.Kline, bool, error) {
	repo, err := s.repos.For(platform)
	if err != nil {
		return model.Kline{}, false, err
	}
	return repo.GetAsOf(ctx, symbol, ts)
}

func (s *KlineService) Latest(ctx context.Context, platform, symbol string) (model.Kline, bool, error) {
	repo, err := s.repos.For(platform)
	if err != nil {
		return model.Kline{}, false, err
	}
	return repo.GetLatestByInsertionOrder(ctx, symbol)
}

func (s *KlineService) Range(ctx context.Context, platform, symbol string, start, end int64) ([]model.Kline, error) {
	repo, err := s.repos.For(platform)
	if err != nil {
		return nil, err
	}
	return repo.GetRange(ctx, symbol, start, end)
}
