package port

import (
	"context"

	"quantstore/internal/domain/model"
)

// EventPublisher fans stored records out to caches and event logs.
type EventPublisher interface {
	PublishKline(ctx context.Context, k model.Kline) error
	PublishOrder(ctx context.Context, o model.Order) error
	Close() error
}
