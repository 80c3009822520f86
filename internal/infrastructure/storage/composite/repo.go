package composite

import (
	"context"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

// Publisher fans every event out to all publishers and reports the first error.
type Publisher struct {
	pubs []port.EventPublisher
}

func New(pubs ...port.EventPublisher) *Publisher {
	// nil publishers are allowed; filter in constructor for safety
	out := make([]port.EventPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Publisher{pubs: out}
}

// Len returns the number of wrapped publishers.
func (c *Publisher) Len() int { return len(c.pubs) }

func (c *Publisher) PublishKline(ctx context.Context, k model.Kline) error {
	var firstErr error
	for _, p := range c.pubs {
		if err := p.PublishKline(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Publisher) PublishOrder(ctx context.Context, o model.Order) error {
	var firstErr error
	for _, p := range c.pubs {
		if err := p.PublishOrder(ctx, o); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Publisher) Close() error {
	var firstErr error
	for _, p := range c.pubs {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type noop struct{}

// Noop returns a publisher that drops every event.
func Noop() port.EventPublisher { return noop{} }

func (noop) PublishKline(context.Context, model.Kline) error { return nil }
func (noop) PublishOrder(context.Context, model.Order) error { return nil }
func (noop) Close() error                                    { return nil }

var _ port.EventPublisher = (*Publisher)(nil)
