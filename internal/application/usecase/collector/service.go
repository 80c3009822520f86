package collector

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"quantstore/internal/application/port"
)

// KlineRecorder persists one candle under the platform it came from.
type KlineRecorder interface {
	Record(ctx context.Context, platform, symbol string, open, high, low, close decimal.Decimal, ts int64) (string, error)
}

type ServiceDeps struct {
	Feeds   []port.KlineFeed
	Symbols []string // BASE/QUOTE
	Klines  KlineRecorder
	// OnlyFinal drops candles that are still open.
	OnlyFinal bool
	// StatsEvery logs counters periodically, 0 disables.
	StatsEvery time.Duration
}

// Service merges every feed and records the candles.
type Service struct {
	deps  ServiceDeps
	stats Stats
}

type Stats struct {
	Received int64
	Stored   int64
	Skipped  int64
	Failed   int64
}

func NewService(deps ServiceDeps) *Service {
	return &Service{deps: deps}
}

// Stats returns the counters. Only safe after Run returned.
func (s *Service) Stats() Stats { return s.stats }

func (s *Service) Run(ctx context.Context) error {
	if len(s.deps.Feeds) == 0 {
		return errors.New("no feeds")
	}
	if len(s.deps.Symbols) == 0 {
		return errors.New("no symbols")
	}

	merged := make(chan port.KlineTick, 1024)
	open := 0
	done := make(chan struct{}, len(s.deps.Feeds))

	// start feeds
	for _, feed := range s.deps.Feeds {
		ch, err := feed.Subscribe(ctx, s.deps.Symbols)
		if err != nil {
			return err
		}
		open++
		go func(in <-chan port.KlineTick) {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-in:
					if !ok {
						return
					}
					select {
					case merged <- t:
					case <-ctx.Done():
						return
					}
				}
			}
		}(ch)

		log.Info().Str("feed", feed.Name()).Strs("symbols", s.deps.Symbols).Msg("feed started")
	}

	var statsC <-chan time.Time
	if s.deps.StatsEvery > 0 {
		ticker := time.NewTicker(s.deps.StatsEvery)
		defer ticker.Stop()
		statsC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logStats()
			return ctx.Err()

		case <-done:
			open--
			if open == 0 {
				if err := ctx.Err(); err != nil {
					s.logStats()
					return err
				}
				s.drain(ctx, merged)
				s.logStats()
				return nil
			}

		case <-statsC:
			s.logStats()

		case t := <-merged:
			s.handle(ctx, t)
		}
	}
}

// drain records ticks still buffered after every feed closed.
func (s *Service) drain(ctx context.Context, merged <-chan port.KlineTick) {
	for {
		select {
		case t := <-merged:
			s.handle(ctx, t)
		default:
			return
		}
	}
}

func (s *Service) handle(ctx context.Context, t port.KlineTick) {
	s.stats.Received++
	if s.deps.OnlyFinal && !t.Final {
		s.stats.Skipped++
		return
	}
	k := t.Kline
	if _, err := s.deps.Klines.Record(ctx, t.Exchange, k.Symbol, k.Open, k.High, k.Low, k.Close, k.Timestamp); err != nil {
		s.stats.Failed++
		log.Error().Err(err).Str("exchange", t.Exchange).Str("symbol", k.Symbol).Int64("ts", k.Timestamp).Msg("record kline failed")
		return
	}
	s.stats.Stored++
}

func (s *Service) logStats() {
	log.Info().
		Int64("received", s.stats.Received).
		Int64("stored", s.stats.Stored).
		Int64("skipped", s.stats.Skipped).
		Int64("failed", s.stats.Failed).
		Msg("collector stats")
}
