package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantstore/internal/infrastructure/feed"
)

// frame is a complete combined-stream kline event as Binance sends it.
const frame = `{"stream":"btcusdt@kline_1m","data":{"e":"kline","E":1700000060123,"s":"BTCUSDT",` +
	`"k":{"t":1700000000000,"T":1700000059999,"s":"BTCUSDT","i":"1m","f":100,"L":200,` +
	`"o":"37000.10","c":"37010.00","h":"37020.50","l":"36990.00","v":"12.5","n":101,"x":true,` +
	`"q":"462600.25","V":"6.1","Q":"225700.00","B":"0"}}}`

func TestStreamURL(t *testing.T) {
	f := NewKlineFeed("wss://stream.binance.com:9443", "5m", nil)
	u, err := f.streamURL([]string{"BTC/USDT", " ", "eth/btc"})
	require.NoError(t, err)
	assert.Equal(t, "wss://stream.binance.com:9443/stream?streams=btcusdt@kline_5m/ethbtc@kline_5m", u)

	_, err = f.streamURL(nil)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	f := NewKlineFeed("", "", nil)
	tick, err := f.decode([]byte(frame))
	require.NoError(t, err)
	assert.Equal(t, Name, tick.Exchange)
	assert.Equal(t, "BTC/USDT", tick.Kline.Symbol)
	assert.Equal(t, "1m", tick.Interval)
	assert.True(t, tick.Final)
	assert.EqualValues(t, 1700000000000, tick.Kline.Timestamp)
	assert.True(t, tick.Kline.Open.Equal(decimal.RequireFromString("37000.1")))
	assert.True(t, tick.Kline.High.Equal(decimal.RequireFromString("37020.5")))
	assert.True(t, tick.Kline.Low.Equal(decimal.RequireFromString("36990")))
	assert.True(t, tick.Kline.Close.Equal(decimal.RequireFromString("37010")))

	_, err = f.decode([]byte(`{"data":{"e":"24hrMiniTicker"}}`))
	assert.Error(t, err)
	_, err = f.decode([]byte(strings.Replace(frame, `"o":"37000.10"`, `"o":"abc"`, 1)))
	assert.Error(t, err)
}

func TestSubscribeReadsFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	queries := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case queries <- r.URL.RawQuery:
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{"e":"other"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewKlineFeed("ws"+strings.TrimPrefix(srv.URL, "http"), "1m", nil)
	ch, err := f.Subscribe(ctx, []string{"BTC/USDT"})
	require.NoError(t, err)

	select {
	case tick := <-ch:
		assert.Equal(t, "BTC/USDT", tick.Kline.Symbol)
		assert.EqualValues(t, 1700000000000, tick.Kline.Timestamp)
		assert.True(t, tick.Final)
	case <-time.After(5 * time.Second):
		t.Fatal("no tick received")
	}
	assert.Equal(t, "streams=btcusdt@kline_1m", <-queries)

	cancel()
	for range ch {
	}
}

func TestDecodeKeepsCaseCollidingKeysApart(t *testing.T) {
	var msg combinedMsg
	require.NoError(t, json.Unmarshal([]byte(frame), &msg))
	assert.Equal(t, "kline", msg.Data.Event)
	assert.EqualValues(t, 1700000060123, msg.Data.EventTime)
	assert.EqualValues(t, 1700000000000, msg.Data.K.Start)
	assert.EqualValues(t, 1700000059999, msg.Data.K.End)
	assert.EqualValues(t, 200, msg.Data.K.LastTradeID)
	assert.Equal(t, "36990.00", msg.Data.K.Low)
	assert.Equal(t, "12.5", msg.Data.K.Volume)
	assert.Equal(t, "6.1", msg.Data.K.TakerBase)
	assert.Equal(t, "462600.25", msg.Data.K.QuoteVolume)
	assert.Equal(t, "225700.00", msg.Data.K.TakerQuote)
}

// The server floods frames so cancellation lands while the reader still has
// data; closing the tick channel must wait for the reader.
func TestCancelWhileStreaming(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 5000; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	f := NewKlineFeed("ws"+strings.TrimPrefix(srv.URL, "http"), "1m", nil)
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := f.Subscribe(ctx, []string{"BTC/USDT"})
		require.NoError(t, err)

		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			cancel()
			t.Fatal("no tick received")
		}
		cancel()

		done := make(chan struct{})
		go func() {
			for range ch {
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("tick channel not closed after cancel")
		}
	}
}

func TestRegistered(t *testing.T) {
	factory, ok := feed.Get(Name)
	require.True(t, ok)
	assert.Equal(t, Name, factory("", "").Name())
}
