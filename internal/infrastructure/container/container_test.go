package container

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantstore/internal/infrastructure/config"
	"quantstore/internal/infrastructure/exchange/binance"
)

func TestContainerWithMemory(t *testing.T) {
	cfg, err := config.Parse("")
	require.NoError(t, err)

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Store())
	require.NotNil(t, c.App())
	assert.Same(t, cfg, c.Config())

	feeds, err := c.Feeds()
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, binance.Name, feeds[0].Name())
}

func TestContainerWithSQLite(t *testing.T) {
	cfg, err := config.Parse(`
[storage]
backend = "sqlite"

[storage.sqlite]
path = "` + filepath.ToSlash(filepath.Join(t.TempDir(), "quant.db")) + `"
`)
	require.NoError(t, err)

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx := context.Background()
	p := decimal.NewFromInt(10)
	_, err = c.App().KlineService().Record(ctx, "BINANCE", "ETH/USDT", p, p, p, p, 1000)
	require.NoError(t, err)

	k, found, err := c.App().KlineService().AsOf(ctx, "BINANCE", "ETH/USDT", 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 1000, k.Timestamp)

	require.NoError(t, c.Close())
	// idempotent
	require.NoError(t, c.Close())
}

func TestContainerFeeds(t *testing.T) {
	cfg, err := config.Parse(`
[collector]
exchanges = ["KRAKEN"]
`)
	require.NoError(t, err)
	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Feeds()
	assert.ErrorIs(t, err, ErrUnknownExchange)
}

func TestContainerStorageFailure(t *testing.T) {
	cfg, err := config.Parse("")
	require.NoError(t, err)
	cfg.Storage.Backend = "cassandra"

	_, err = New(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrStorageInitFailed), "got %v", err)
}
