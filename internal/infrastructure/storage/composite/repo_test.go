package composite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"quantstore/internal/domain/model"
)

type recorder struct {
	klines, orders, closed int
	err                    error
}

func (r *recorder) PublishKline(context.Context, model.Kline) error { r.klines++; return r.err }
func (r *recorder) PublishOrder(context.Context, model.Order) error { r.orders++; return r.err }
func (r *recorder) Close() error                                    { r.closed++; return r.err }

func TestFanOutReachesEveryPublisher(t *testing.T) {
	boom := errors.New("boom")
	first := &recorder{err: boom}
	second := &recorder{err: errors.New("second")}
	third := &recorder{}

	c := New(first, nil, second, third)
	assert.Equal(t, 3, c.Len())

	ctx := context.Background()
	assert.ErrorIs(t, c.PublishKline(ctx, model.Kline{}), boom)
	assert.ErrorIs(t, c.PublishOrder(ctx, model.Order{}), boom)
	assert.ErrorIs(t, c.Close(), boom)

	for _, r := range []*recorder{first, second, third} {
		assert.Equal(t, 1, r.klines)
		assert.Equal(t, 1, r.orders)
		assert.Equal(t, 1, r.closed)
	}
}

func TestEmptyAndNoop(t *testing.T) {
	ctx := context.Background()
	c := New()
	assert.NoError(t, c.PublishKline(ctx, model.Kline{}))
	assert.NoError(t, c.Close())

	n := Noop()
	assert.NoError(t, n.PublishOrder(ctx, model.Order{}))
}
