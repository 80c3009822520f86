package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
	"quantstore/internal/infrastructure/storage/memory"
)

func newKlineStore() *KlineStore {
	return NewKlineStore(NewPartitionRouter(memory.New(), "binance"))
}

func insertKline(t *testing.T, s *KlineStore, symbol string, ts int64, closePx string) string {
	t.Helper()
	c := decimal.RequireFromString(closePx)
	id, err := s.Insert(context.Background(), symbol, c, c, c, c, ts)
	require.NoError(t, err)
	return id
}

func TestKlineInsertRoundTrip(t *testing.T) {
	s := newKlineStore()
	ctx := context.Background()

	id, err := s.Insert(ctx, "ETH/BTC",
		decimal.RequireFromString("0.0521"),
		decimal.RequireFromString("0.0530"),
		decimal.RequireFromString("0.0519"),
		decimal.RequireFromString("0.0525"),
		1_600_000_000_000)
	require.NoError(t, err)

	k, found, err := s.GetAsOf(ctx, "ETH/BTC", 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, k.ID)
	assert.Equal(t, "ETH/BTC", k.Symbol)
	assert.True(t, k.Open.Equal(decimal.RequireFromString("0.0521")))
	assert.True(t, k.High.Equal(decimal.RequireFromString("0.0530")))
	assert.True(t, k.Low.Equal(decimal.RequireFromString("0.0519")))
	assert.True(t, k.Close.Equal(decimal.RequireFromString("0.0525")))
	assert.EqualValues(t, 1_600_000_000_000, k.Timestamp)
	assert.NotZero(t, k.CreatedAt)
}

func TestKlineInsertDoesNotValidatePrices(t *testing.T) {
	s := newKlineStore()
	_, err := s.Insert(context.Background(), "BTC/USD",
		decimal.NewFromInt(10), decimal.NewFromInt(1), decimal.NewFromInt(50), decimal.NewFromInt(-3), 1)
	assert.NoError(t, err)
}

func TestKlineInvalidSymbol(t *testing.T) {
	s := newKlineStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, "BTCUSD", decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, 1)
	assert.ErrorIs(t, err, model.ErrInvalidSymbolFormat)
	_, _, err = s.GetAsOf(ctx, "", 1)
	assert.ErrorIs(t, err, model.ErrInvalidSymbolFormat)
	_, err = s.GetRange(ctx, "A/B/C", 0, 1)
	assert.ErrorIs(t, err, model.ErrInvalidSymbolFormat)
}

func TestKlineGetAsOf(t *testing.T) {
	s := newKlineStore()
	ctx := context.Background()
	for _, ts := range []int64{1000, 3000, 2000} {
		insertKline(t, s, "BTC/USD", ts, "1")
	}

	tests := []struct {
		name  string
		ts    int64
		want  int64
		found bool
	}{
		{"between", 2500, 2000, true},
		{"exact", 3000, 3000, true},
		{"after all", 9000, 3000, true},
		{"unbounded", 0, 3000, true},
		{"before all", 500, 0, false},
		{"negative is a bound", -5, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, found, err := s.GetAsOf(ctx, "BTC/USD", tt.ts)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, k.Timestamp)
			if tt.ts != 0 && found {
				assert.LessOrEqual(t, k.Timestamp, tt.ts)
			}
		})
	}
}

func TestKlineGetAsOfEmptyPartition(t *testing.T) {
	s := newKlineStore()
	_, found, err := s.GetAsOf(context.Background(), "ETH/BTC", 0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKlineGetAsOfDuplicateTimestamps(t *testing.T) {
	s := newKlineStore()
	ctx := context.Background()
	insertKline(t, s, "BTC/USD", 1000, "1")
	insertKline(t, s, "BTC/USD", 2000, "2")
	insertKline(t, s, "BTC/USD", 2000, "3")

	k, found, err := s.GetAsOf(ctx, "BTC/USD", 2500)
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 2000, k.Timestamp)

	again, _, err := s.GetAsOf(ctx, "BTC/USD", 2500)
	require.NoError(t, err)
	assert.Equal(t, k.ID, again.ID)
}

func TestKlineLatestByInsertionOrderSeesBackfill(t *testing.T) {
	s := newKlineStore()
	ctx := context.Background()
	insertKline(t, s, "BTC/USD", 3000, "30")
	backfill := insertKline(t, s, "BTC/USD", 1000, "10")

	latest, found, err := s.GetLatestByInsertionOrder(ctx, "BTC/USD")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, backfill, latest.ID)
	assert.EqualValues(t, 1000, latest.Timestamp)

	asOf, found, err := s.GetAsOf(ctx, "BTC/USD", 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 3000, asOf.Timestamp)
}

func TestKlineLatestByInsertionOrderEmpty(t *testing.T) {
	_, found, err := newKlineStore().GetLatestByInsertionOrder(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKlineGetRange(t *testing.T) {
	s := newKlineStore()
	ctx := context.Background()
	for _, ts := range []int64{500, 4000, 1000, 3000, 2000, 2000} {
		insertKline(t, s, "BTC/USD", ts, "1")
	}

	ks, err := s.GetRange(ctx, "BTC/USD", 1000, 3000)
	require.NoError(t, err)
	require.Len(t, ks, 4)
	for i, k := range ks {
		assert.GreaterOrEqual(t, k.Timestamp, int64(1000))
		assert.LessOrEqual(t, k.Timestamp, int64(3000))
		assert.Zero(t, k.CreatedAt, "bookkeeping fields are projected out")
		if i > 0 {
			assert.LessOrEqual(t, ks[i-1].Timestamp, k.Timestamp)
		}
	}
}

func TestKlineGetRangeEmpty(t *testing.T) {
	s := newKlineStore()
	ctx := context.Background()
	insertKline(t, s, "BTC/USD", 1000, "1")

	ks, err := s.GetRange(ctx, "BTC/USD", 2000, 3000)
	require.NoError(t, err)
	assert.NotNil(t, ks)
	assert.Empty(t, ks)
}

func TestKlineSymbolsArePartitioned(t *testing.T) {
	s := newKlineStore()
	ctx := context.Background()
	insertKline(t, s, "BTC/USD", 1000, "1")

	_, found, err := s.GetAsOf(ctx, "ETH/USD", 0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKlineStoresDatabasePerPlatform(t *testing.T) {
	mem := memory.New()
	stores := NewKlineStores(mem)
	ctx := context.Background()

	bn, err := stores.For("BINANCE")
	require.NoError(t, err)
	again, err := stores.For(" binance ")
	require.NoError(t, err)
	assert.Same(t, bn, again)

	okx, err := stores.For("OKX")
	require.NoError(t, err)

	one := decimal.NewFromInt(1)
	_, err = bn.Insert(ctx, "BTC/USDT", one, one, one, one, 1000)
	require.NoError(t, err)
	_, err = okx.Insert(ctx, "BTC/USDT", one, one, one, one, 2000)
	require.NoError(t, err)

	p, err := mem.Partition(ctx, "binance", "kline_btc_usdt")
	require.NoError(t, err)
	docs, err := p.FindMany(ctx, bson.M{}, port.FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.EqualValues(t, 1000, docs[0][klineTime])

	k, found, err := okx.GetAsOf(ctx, "BTC/USDT", 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 2000, k.Timestamp)
	assert.Equal(t, "okx", k.Platform)
}

func TestKlineStoresRejectBadPlatform(t *testing.T) {
	stores := NewKlineStores(memory.New())
	for _, p := range []string{"", "  ", "a.b", "$x", "a/b"} {
		_, err := stores.For(p)
		assert.ErrorIs(t, err, model.ErrInvalidPlatform, p)
	}
}
