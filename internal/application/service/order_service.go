package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

type OrderService struct {
	repo port.OrderRepository
	pub  port.EventPublisher
}

func NewOrderService(repo port.OrderRepository, pub port.EventPublisher) *OrderService {
	return &OrderService{repo: repo, pub: pub}
}

func (s *OrderService) Create(ctx context.Context, o model.Order) (string, error) {
	id, err := s.repo.CreateOrder(ctx, o)
	if err != nil {
		return "", err
	}
	o.ID = id
	s.publish(ctx, o)
	return id, nil
}

// UpdateStatus writes status and remain of an existing order. Nothing is
// published when no order matched.
func (s *OrderService) UpdateStatus(ctx context.Context, o model.Order) (int64, error) {
	n, err := s.repo.ApplyStatusUpdate(ctx, o)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(ctx, o)
	}
	return n, nil
}

// Sync creates the order on first sight and afterwards only applies status and
// remain changes. It reports whether anything was written.
func (s *OrderService) Sync(ctx context.Context, o model.Order) (bool, error) {
	cur, found, err := s.repo.FindByOrderNumber(ctx, o.Platform, o.OrderNo)
	if err != nil {
		return false, err
	}
	if !found {
		_, err := s.Create(ctx, o)
		return err == nil, err
	}
	if cur.Status == o.Status && cur.Remain.Equal(o.Remain) {
		return false, nil
	}
	if cur.IsTerminal() {
		log.Warn().Str("platform", o.Platform).Str("order_no", o.OrderNo).
			Str("from", cur.Status).Str("to", o.Status).Msg("order leaves terminal status")
	}
	n, err := s.UpdateStatus(ctx, o)
	return n > 0, err
}

func (s *OrderService) Find(ctx context.Context, platform, orderNo string) (model.Order, bool, error) {
	return s.repo.FindByOrderNumber(ctx, platform, orderNo)
}

func (s *OrderService) Latest(ctx context.Context, platform, symbol string) (model.Order, bool, error) {
	return s.repo.GetLatestOrder(ctx, platform, symbol)
}

func (s *OrderService) publish(ctx context.Context, o model.Order) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishOrder(ctx, o); err != nil {
		log.Warn().Err(err).Str("platform", o.Platform).Str("order_no", o.OrderNo).Msg("publish order failed")
	}
}
