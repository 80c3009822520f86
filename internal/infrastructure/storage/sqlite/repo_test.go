package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
	"quantstore/internal/infrastructure/storage"
)

func openStore(t *testing.T) port.DocumentStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "quant.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestPartitionRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	p, err := s.Partition(ctx, "binance", "kline_btc_usdt")
	require.NoError(t, err)
	assert.Equal(t, "binance.kline_btc_usdt", p.Name())

	o, err := primitive.ParseDecimal128("42.5")
	require.NoError(t, err)
	id, err := p.Insert(ctx, bson.M{"o": o, "t": int64(1_700_000_000_000), "tag": "x"})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	doc, found, err := p.FindOne(ctx, bson.M{"tag": "x"}, port.FindOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, doc[port.FieldID])
	assert.EqualValues(t, 1_700_000_000_000, doc["t"])
	assert.Equal(t, o, doc["o"])
	assert.Contains(t, doc, port.FieldCreateTime)
}

func TestPartitionUpdateUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p, err := s.Partition(ctx, "asset", "asset")
	require.NoError(t, err)

	filter := bson.M{"platform": "binance", "account": "a", "timestamp": int64(5)}
	n, err := p.Update(ctx, filter, bson.M{"BTC": bson.M{"free": "1"}, "ETH": bson.M{"free": "2"}}, nil, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = p.Update(ctx, filter, bson.M{"BTC": bson.M{"free": "3"}}, []string{"ETH"}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	docs, err := p.FindMany(ctx, bson.M{"platform": "binance"}, port.FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotContains(t, docs[0], "ETH")
	btc, ok := docs[0]["BTC"].(bson.M)
	require.True(t, ok, "BTC is %T", docs[0]["BTC"])
	assert.Equal(t, "3", btc["free"])

	n, err = p.Update(ctx, bson.M{"platform": "okx"}, bson.M{"x": "y"}, nil, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestKlineStoreOnSQLite(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	klines := storage.NewKlineStore(storage.NewPartitionRouter(s, "binance"))

	for _, ts := range []int64{1000, 2000, 3000} {
		p := decimal.NewFromInt(ts / 100)
		_, err := klines.Insert(ctx, "BTC/USDT", p, p, p, p, ts)
		require.NoError(t, err)
	}

	k, found, err := klines.GetAsOf(ctx, "BTC/USDT", 2500)
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 2000, k.Timestamp)
	assert.True(t, k.Close.Equal(decimal.NewFromInt(20)))

	got, err := klines.GetRange(ctx, "BTC/USDT", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 1000, got[0].Timestamp)
	assert.EqualValues(t, 2000, got[1].Timestamp)

	// backfill: newest by insertion, not by timestamp
	_, err = klines.Insert(ctx, "BTC/USDT", decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1), 500)
	require.NoError(t, err)
	k, found, err = klines.GetLatestByInsertionOrder(ctx, "BTC/USDT")
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 500, k.Timestamp)
}

func TestAssetAndOrderStoresOnSQLite(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	assets, err := storage.NewAssetStore(ctx, s)
	require.NoError(t, err)
	one := model.NewBalance(decimal.NewFromInt(1), decimal.Zero)
	_, err = assets.MergeCurrent(ctx, "binance", "acct", model.Balances{"BTC": one, "ETH": one}, 10, nil)
	require.NoError(t, err)
	_, err = assets.MergeCurrent(ctx, "binance", "acct", model.Balances{"BTC": one}, 10, []string{"ETH"})
	require.NoError(t, err)
	a, found, err := assets.GetLatestCurrent(ctx, "binance", "acct")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, a.Balances, 1)
	assert.True(t, a.Balances["BTC"].Total.Equal(decimal.NewFromInt(1)))

	orders, err := storage.NewOrderStore(ctx, s)
	require.NoError(t, err)
	o := model.Order{
		Platform: "binance", Symbol: "BTC/USDT", OrderNo: "1001", Status: model.OrderStatusSubmitted,
		Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(5), Remain: decimal.NewFromInt(5),
		UpdateTime: 1,
	}
	_, err = orders.CreateOrder(ctx, o)
	require.NoError(t, err)

	o.Status, o.Remain, o.Price = model.OrderStatusFilled, decimal.Zero, decimal.NewFromInt(999)
	n, err := orders.ApplyStatusUpdate(ctx, o)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, found, err := orders.FindByOrderNumber(ctx, "binance", "1001")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.OrderStatusFilled, got.Status)
	assert.True(t, got.Remain.IsZero())
	assert.True(t, got.Price.Equal(decimal.NewFromInt(100)))
}
