package port

import (
	"context"

	"github.com/shopspring/decimal"

	"quantstore/internal/domain/model"
)

// KlineRepository K线仓储
type KlineRepository interface {
	Insert(ctx context.Context, symbol string, open, high, low, close decimal.Decimal, ts int64) (string, error)
	GetAsOf(ctx context.Context, symbol string, ts int64) (model.Kline, bool, error)
	GetLatestByInsertionOrder(ctx context.Context, symbol string) (model.Kline, bool, error)
	GetRange(ctx context.Context, symbol string, start, end int64) ([]model.Kline, error)
}

// KlineRepositories 按平台（交易所）划分的 K线仓储
type KlineRepositories interface {
	For(platform string) (KlineRepository, error)
}

// AssetRepository 当前资产仓储（按 platform+account+timestamp 合并）
type AssetRepository interface {
	RecordCurrent(ctx context.Context, platform, account string, balances model.Balances, ts int64) (string, error)
	MergeCurrent(ctx context.Context, platform, account string, balances model.Balances, ts int64, removed []string) (int64, error)
	GetLatestCurrent(ctx context.Context, platform, account string) (model.Asset, bool, error)
}

// AssetSnapshotRepository 资产历史快照仓储（只追加）
type AssetSnapshotRepository interface {
	RecordSnapshot(ctx context.Context, platform, account string, balances model.Balances, ts int64) (string, error)
	GetSnapshotRange(ctx context.Context, platform, account string, start, end int64) ([]model.Asset, error)
	GetLatestSnapshot(ctx context.Context, platform, account string) (model.Asset, bool, error)
}

// OrderRepository 订单仓储
type OrderRepository interface {
	CreateOrder(ctx context.Context, o model.Order) (string, error)
	FindByOrderNumber(ctx context.Context, platform, orderNo string) (model.Order, bool, error)
	ApplyStatusUpdate(ctx context.Context, o model.Order) (int64, error)
	GetLatestOrder(ctx context.Context, platform, symbol string) (model.Order, bool, error)
}
