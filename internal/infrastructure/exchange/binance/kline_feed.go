package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"quantstore/internal/application/port"
	"quantstore/internal/infrastructure/exchange"
)

const (
	Name = "BINANCE"

	DefaultWSURL    = "wss://stream.binance.com:9443"
	DefaultInterval = "1m"
)

// KlineFeed streams candles from the combined <symbol>@kline_<interval> endpoint.
type KlineFeed struct {
	wsURL    string // e.g. wss://stream.binance.com:9443
	interval string
	conv     *exchange.SymbolConverter
}

func NewKlineFeed(wsURL, interval string, conv *exchange.SymbolConverter) *KlineFeed {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	interval = strings.TrimSpace(interval)
	if interval == "" {
		interval = DefaultInterval
	}
	if conv == nil {
		conv = exchange.NewSymbolConverter()
	}
	return &KlineFeed{wsURL: wsURL, interval: interval, conv: conv}
}

func (f *KlineFeed) Name() string { return Name }

type combinedMsg struct {
	Stream string   `json:"stream"`
	Data   klineMsg `json:"data"`
}

// klineMsg lists every key of the frame. encoding/json falls back to a
// case-insensitive match, so "E" would land in "e", "T" in "t" and "L" in "l"
// unless each has its own field.
type klineMsg struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	K         struct {
		Start        int64  `json:"t"`
		End          int64  `json:"T"`
		Symbol       string `json:"s"`
		Interval     string `json:"i"`
		FirstTradeID int64  `json:"f"`
		LastTradeID  int64  `json:"L"`
		Open         string `json:"o"`
		Close        string `json:"c"`
		High         string `json:"h"`
		Low          string `json:"l"`
		Volume       string `json:"v"`
		Trades       int64  `json:"n"`
		Closed       bool   `json:"x"`
		QuoteVolume  string `json:"q"`
		TakerBase    string `json:"V"`
		TakerQuote   string `json:"Q"`
		Ignore       string `json:"B"`
	} `json:"k"`
}

// Subscribe takes BASE/QUOTE symbols. The channel closes when ctx is done.
func (f *KlineFeed) Subscribe(ctx context.Context, symbols []string) (<-chan port.KlineTick, error) {
	wsURL, err := f.streamURL(symbols)
	if err != nil {
		return nil, err
	}
	out := make(chan port.KlineTick, 1024)
	go f.run(ctx, wsURL, out)
	return out, nil
}

func (f *KlineFeed) streamURL(symbols []string) (string, error) {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(f.conv.FromPair(s)), f.interval))
	}
	if len(streams) == 0 {
		return "", errors.New("symbols empty")
	}

	u, err := url.Parse(f.wsURL)
	if err != nil {
		return "", err
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}

// decode turns one combined-stream frame into a tick.
func (f *KlineFeed) decode(b []byte) (port.KlineTick, error) {
	var msg combinedMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		return port.KlineTick{}, err
	}
	if msg.Data.Event != "kline" {
		return port.KlineTick{}, fmt.Errorf("unexpected event %q", msg.Data.Event)
	}
	sym, ok := f.conv.ToPair(msg.Data.Symbol)
	if !ok {
		return port.KlineTick{}, fmt.Errorf("unknown symbol %q", msg.Data.Symbol)
	}

	k := msg.Data.K
	var tick port.KlineTick
	prices := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{k.Open, &tick.Kline.Open},
		{k.High, &tick.Kline.High},
		{k.Low, &tick.Kline.Low},
		{k.Close, &tick.Kline.Close},
	}
	for _, p := range prices {
		d, err := decimal.NewFromString(p.raw)
		if err != nil {
			return port.KlineTick{}, fmt.Errorf("price %q: %w", p.raw, err)
		}
		*p.dst = d
	}
	tick.Exchange = f.Name()
	tick.Interval = k.Interval
	tick.Final = k.Closed
	tick.Kline.Symbol = sym
	tick.Kline.Timestamp = k.Start
	return tick, nil
}

func (f *KlineFeed) run(ctx context.Context, wsURL string, out chan<- port.KlineTick) {
	defer close(out)

	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Info().Str("feed", f.Name()).Str("url", wsURL).Msg("ws connecting")
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, _, err := websocket.DefaultDialer.DialContext(cctx, wsURL, nil)
		cancel()
		if err != nil {
			log.Error().Str("feed", f.Name()).Err(err).Msg("ws dial failed")
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = 500 * time.Millisecond
		log.Info().Str("feed", f.Name()).Msg("ws connected")

		err = readLoop(ctx, conn, func(b []byte) {
			tick, e := f.decode(b)
			if e != nil {
				log.Debug().Str("feed", f.Name()).Err(e).Msg("skip message")
				return
			}
			select {
			case out <- tick:
			case <-ctx.Done():
			}
		})

		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		log.Warn().Str("feed", f.Name()).Err(err).Msg("ws disconnected, reconnecting")
		if !sleep(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, onMsg func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			onMsg(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// unblock ReadMessage and wait, onMsg must not run after we return
			_ = conn.Close()
			<-errCh
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ port.KlineFeed = (*KlineFeed)(nil)
